/*
prorate.go - Rescaling and month spreading of incomes

PURPOSE:
  Pure functions that move an income onto another span. Scaling changes
  the amount proportionally to the number of covered months. Spreading
  cuts an income into one income per covered month.

ROUNDING:
  Scaled amounts are rounded down (integer division on non-negative
  values). Spreading never loses a unit: every month gets the floored
  share and the LAST month also gets the remainder.

    SpreadOverMonths(1000, Jan..Mar) = Jan 333, Feb 333, Mar 334

SEE ALSO:
  - income.go: Income type
  - contributor/aggregate.go: normalization of declared incomes
*/
package income

import (
	"time"
)

// ScaleToFullYear annualizes p onto January 1st..December 31st of year.
// An income that already covers twelve months keeps its amount.
func ScaleToFullYear(p Income, year int) Income {
	months := p.Months()
	amount := p.Amount
	if months != 12 {
		amount = scale(p.Amount, months, 12)
	}
	return Income{Amount: amount, Category: p.Category, Start: StartOfYear(year), End: EndOfYear(year)}
}

// ScaleToFullYearOf annualizes p onto the year it starts in.
func ScaleToFullYearOf(p Income) Income {
	return ScaleToFullYear(p, p.Year())
}

// ScaleToEndOfYear stretches p so it runs until December 31st of its start
// year. Start is kept as is.
func ScaleToEndOfYear(p Income) Income {
	year := p.Year()
	stretched := Income{Amount: p.Amount, Category: p.Category, Start: p.Start, End: EndOfYear(year)}
	if months, target := p.Months(), stretched.Months(); months != target {
		stretched.Amount = scale(p.Amount, months, target)
	}
	return stretched
}

// ToCompleteMonths widens p to whole calendar months: start goes back to
// the first of its month, end forward to the last day of its month. The
// amount is unchanged.
func ToCompleteMonths(p Income) Income {
	return Income{
		Amount:   p.Amount,
		Category: p.Category,
		Start:    StartOfMonth(p.Start.Year(), p.Start.Month()),
		End:      EndOfMonth(p.End.Year(), p.End.Month()),
	}
}

// SpreadOverMonths splits p into one income per covered month. Keys are
// the months of p's start year; p is expected to stay within one year.
// The shares always add up to p.Amount.
func SpreadOverMonths(p Income) map[time.Month]Income {
	months := p.Months()
	year := p.Year()
	first := p.Start.Month()

	if months == 1 {
		return map[time.Month]Income{
			first: {Amount: p.Amount, Category: p.Category, Start: StartOfMonth(year, first), End: EndOfMonth(year, first)},
		}
	}

	share := p.Amount / int64(months)
	remainder := p.Amount % int64(months)

	out := make(map[time.Month]Income, months)
	for k := 0; k < months; k++ {
		m := first + time.Month(k)
		amount := share
		if k == months-1 {
			amount += remainder
		}
		out[m] = Income{Amount: amount, Category: p.Category, Start: StartOfMonth(year, m), End: EndOfMonth(year, m)}
	}
	return out
}

// Total sums the amounts of a month map.
func Total(byMonth map[time.Month]Income) int64 {
	var total int64
	for _, inc := range byMonth {
		total += inc.Amount
	}
	return total
}

func scale(amount int64, fromMonths, toMonths int) int64 {
	return amount * int64(toMonths) / int64(fromMonths)
}
