package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/config"
)

func init() {
	rootCmd.AddCommand(calcCmd)

	calcCmd.Flags().IntP("year", "y", 0, "Fiscal year (default: most recent table)")
	calcCmd.Flags().BoolP("monthly", "m", false, "Treat INCOME as a monthly income")
}

var calcCmd = &cobra.Command{
	Use:   "calc INCOME",
	Short: "Compute contributions for an income",
	Long: `Compute every contribution rule for INCOME with the table of the given
fiscal year and print the result. Years without a table of their own use
the most recent one.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalc,
}

func runCalc(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[0])
	if err != nil || amount.IsNegative() {
		return fmt.Errorf("income must be a non-negative number, got %q", args[0])
	}
	year, _ := cmd.Flags().GetInt("year")
	monthly, _ := cmd.Flags().GetBool("monthly")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	registry, err := cfg.Calculator.Registry()
	if err != nil {
		return err
	}

	calc := registry.Latest()
	if year != 0 {
		calc = registry.For(year)
	}

	var cs calculator.Contributions
	if monthly {
		cs = calc.ComputeFromMonthlyIncome(amount)
	} else {
		cs = calc.ComputeFromYearlyIncome(amount)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fiscal year %d, income %s (%s)\n\n", calc.Year(), amount, period(monthly))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RULE\tBASE\tRATE %\tAMOUNT\tROUNDED\t")
	for _, code := range calc.Codes() {
		c := cs[code]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			code, c.BaseIncome.StringFixed(2), c.Rate.StringFixed(4), c.Amount.StringFixed(2), calc.Round(c.Amount))
	}
	return tw.Flush()
}

func period(monthly bool) string {
	if monthly {
		return "monthly"
	}
	return "yearly"
}
