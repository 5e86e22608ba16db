package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"demand-foresight/internal/app"
	"demand-foresight/internal/cost"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/repository"
)

var usageUser string

func init() {
	usageCmd.Flags().StringVar(&usageUser, "user", "", "report one user (default all users)")
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(pricingCmd)
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print LLM spend for the last twelve months",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		svc := app.NewUsageService(repository.NewCostRepository(e.db), cost.DefaultPrices, metrics.New(), e.logger)
		usage, err := svc.GetUserUsage(ctx, operator, usageUser)
		if err != nil {
			return err
		}
		who := usageUser
		if who == "" {
			who = "all users"
		}
		writeUsage(cmd.OutOrStdout(), who, usage)
		return nil
	},
}

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Print the model price table (USD per million tokens)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		writePrices(cmd.OutOrStdout(), cost.DefaultPrices)
		return nil
	},
}

func writeUsage(out io.Writer, who string, usage cost.Usage) {
	fmt.Fprintf(out, "usage for %s: $%.6f total\n", who, usage.Total)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tCOST (USD)")
	for _, m := range usage.Monthly {
		fmt.Fprintf(w, "%s\t%.6f\n", m.Month.Format("2006-01"), m.Cost)
	}
	_ = w.Flush()
}

func writePrices(out io.Writer, prices cost.PriceTable) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPROMPT\tCOMPLETION")
	for _, name := range prices.Models() {
		rate := prices[name]
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", name, rate.Prompt, rate.Completion)
	}
	_ = w.Flush()
}
