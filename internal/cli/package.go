package cli

import (
	"context"

	"github.com/spf13/cobra"

	"ckandump/internal/app"
)

var packageCmd = &cobra.Command{
	Use:   "package <id>...",
	Short: "Dump individual packages",
	Long: `Dump the given packages without going through a group: their
resources plus a metadata snapshot, directly under the output directory.

Examples:
  ckandump package spending-2024
  ckandump package spending-2024 budget-2024`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPackage,
}

func runPackage(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd, func(ctx context.Context, p *app.Pipeline) error {
		for _, id := range args {
			if err := p.Orchestrator.DumpPackage(ctx, id, ""); err != nil {
				p.Orchestrator.Report().Add("package", id, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return nil
	})
}
