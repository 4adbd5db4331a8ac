package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/observability"
	"github.com/jonathan/content-engine/internal/types"
)

var intelligenceCmd = &cobra.Command{
	Use:     "intelligence",
	Aliases: []string{"intel"},
	Short:   "Build and inspect niche intelligence snapshots",
}

var intelligenceBuildCmd = &cobra.Command{
	Use:   "build <niche>",
	Short: "Build a new intelligence snapshot from the current trends",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntelligenceBuild,
}

var intelligenceShowCmd = &cobra.Command{
	Use:   "show <niche>",
	Short: "Print the latest intelligence snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntelligenceShow,
}

func init() {
	intelligenceCmd.AddCommand(intelligenceBuildCmd, intelligenceShowCmd)
	rootCmd.AddCommand(intelligenceCmd)
}

func runIntelligenceBuild(cmd *cobra.Command, args []string) error {
	niche, err := types.ParseNiche(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.intelligence.Build(cmd.Context(), string(niche))
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSnapshot(snapshot)
	return nil
}

func runIntelligenceShow(cmd *cobra.Command, args []string) error {
	niche, err := types.ParseNiche(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.intelligence.Latest(cmd.Context(), string(niche))
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("no intelligence snapshot for %s; run 'intelligence build %s' first", niche, niche)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSnapshot(snapshot)
	return nil
}
