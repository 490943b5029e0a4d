package cli

import (
	"context"

	"github.com/spf13/cobra"

	"ckandump/internal/app"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Dump every package in the catalog",
	Long: `Dump every package the catalog lists, regardless of group membership.

Packages land directly under the output directory, one subdirectory per
author where the package names one.

Examples:
  ckandump all
  ckandump all --output ./data --verbose`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func runAll(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd, func(ctx context.Context, p *app.Pipeline) error {
		return p.Orchestrator.DumpAll(ctx)
	})
}
