package calculator

import (
	"github.com/shopspring/decimal"
)

// Rule codes, in evaluation order.
const (
	CodeMaladie1T2          = "MLD1T2"   // sickness 1, income above 5 x PASS
	CodeMaladie1T1          = "MLD1T1"   // sickness 1, income up to 5 x PASS
	CodeMaladie1            = "MAL1"     // MLD1T1 + MLD1T2
	CodeMaladie2            = "MAL2"     // sickness 2
	CodeRetraiteT1          = "RVB T1"   // basic pension up to PASS
	CodeRetraiteT2          = "RVB T2"   // basic pension above PASS
	CodeRetraite            = "RVB"      // RVB T1 + RVB T2
	CodeComplementaireT1    = "RCI T1"   // supplementary pension up to PRCI
	CodeComplementaireT2    = "RCI T2"   // supplementary pension from PRCI to 4 x PASS
	CodeComplementaire      = "RCI"      // RCI T1 + RCI T2
	CodeInvaliditeDeces     = "RID"      // disability and death, up to PASS
	CodeAllocationsFamilial = "AF"       // family allowances
	CodeCSGCRDS             = "CSG/CRDS" // generalized social contribution
)

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// standardRules is the rule set every shipped year uses; only the
// constants differ from one year to the next.
func standardRules(mc mathContext, k Constants) []Rule {
	zero := decimal.Zero

	// MLD1T1 rate: 0 at no income, rising to 1.35 + 5 x 0.4 / 1.1 at 40% of
	// PASS, then 6.35 from 110% of PASS on.
	mld1t1At40 := mc.round(pct("1.35").Add(mc.div(pct("2"), pct("1.1"))))

	return []Rule{
		{
			Code: CodeMaladie1T2,
			Base: func(inc decimal.Decimal) decimal.Decimal { return decimal.Max(inc.Sub(k.PassX5), zero) },
			Rate: fixed(pct("6.5")),
		},
		{
			Code: CodeMaladie1T1,
			Base: func(inc decimal.Decimal) decimal.Decimal { return clamp(inc, k.Pass40, k.PassX5) },
			Rate: mc.linearRate(
				point{zero, zero},
				point{k.Pass40, mld1t1At40},
				point{k.Pass110, pct("6.35")},
			),
		},
		{
			Code:  CodeMaladie1,
			Base:  identity,
			Parts: []string{CodeMaladie1T1, CodeMaladie1T2},
		},
		{
			Code: CodeMaladie2,
			Base: func(inc decimal.Decimal) decimal.Decimal { return clamp(inc, k.Pass40, k.PassX5) },
			Rate: fixed(pct("0.85")),
		},
		{
			Code: CodeRetraiteT1,
			Base: func(inc decimal.Decimal) decimal.Decimal { return clamp(inc, k.Pass0115, k.PASS) },
			Rate: fixed(pct("17.75")),
		},
		{
			Code: CodeRetraiteT2,
			Base: func(inc decimal.Decimal) decimal.Decimal { return decimal.Max(inc.Sub(k.PASS), zero) },
			Rate: fixed(pct("0.6")),
		},
		{
			Code:  CodeRetraite,
			Base:  identity,
			Parts: []string{CodeRetraiteT1, CodeRetraiteT2},
		},
		{
			Code: CodeComplementaireT1,
			Base: func(inc decimal.Decimal) decimal.Decimal { return decimal.Min(inc, k.PRCI) },
			Rate: fixed(pct("7")),
		},
		{
			Code: CodeComplementaireT2,
			Base: func(inc decimal.Decimal) decimal.Decimal {
				return clamp(inc.Sub(k.PRCI), zero, k.PassX4.Sub(k.PRCI))
			},
			Rate: fixed(pct("8")),
		},
		{
			Code:  CodeComplementaire,
			Base:  identity,
			Parts: []string{CodeComplementaireT1, CodeComplementaireT2},
		},
		{
			Code: CodeInvaliditeDeces,
			Base: func(inc decimal.Decimal) decimal.Decimal { return clamp(inc, k.Pass0115, k.PASS) },
			Rate: fixed(pct("1.3")),
		},
		{
			Code: CodeAllocationsFamilial,
			Base: identity,
			Rate: mc.linearRate(
				point{k.Pass110, zero},
				point{k.Pass140, pct("3.1")},
			),
		},
		{
			Code: CodeCSGCRDS,
			Base: func(inc decimal.Decimal) decimal.Decimal { return mc.mul(inc, k.CSG) },
			Rate: fixed(pct("9.7")),
		},
	}
}
