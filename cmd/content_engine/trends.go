package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/observability"
	"github.com/jonathan/content-engine/internal/types"
)

var trendsLimit int

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Refresh and maintain trending products",
}

var trendsRefreshCmd = &cobra.Command{
	Use:   "refresh <niche>",
	Short: "Collect trend signals for a niche and store the ranking",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrendsRefresh,
}

var trendsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete trending products past the retention window",
	Args:  cobra.NoArgs,
	RunE:  runTrendsPrune,
}

func init() {
	trendsRefreshCmd.Flags().IntVar(&trendsLimit, "limit", 20, "Number of products to print")

	trendsCmd.AddCommand(trendsRefreshCmd, trendsPruneCmd)
	rootCmd.AddCommand(trendsCmd)
}

func runTrendsRefresh(cmd *cobra.Command, args []string) error {
	niche, err := types.ParseNiche(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.trends.Refresh(cmd.Context(), string(niche))
	if err != nil {
		return err
	}
	products, err := a.trends.List(cmd.Context(), string(niche), trendsLimit)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTrends(result, products)
	return nil
}

func runTrendsPrune(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.trends.Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d trending products\n", n)
	return nil
}
