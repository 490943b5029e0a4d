package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"ckandump/internal/app"
)

var groupCmd = &cobra.Command{
	Use:   "group [id...]",
	Short: "Dump one or more catalog groups",
	Long: `Dump the given groups: every package the group lists, with its
resources, plus a metadata snapshot per group and per package.

Without arguments the groups from the configuration file are dumped.

Examples:
  ckandump group budget
  ckandump group budget spending --output ./data`,
	RunE: runGroup,
}

func runGroup(cmd *cobra.Command, args []string) error {
	ids := args
	if len(ids) == 0 {
		ids = cfg.Groups
	}
	if len(ids) == 0 {
		return errors.New("no groups given and none configured")
	}

	return runPipeline(cmd, func(ctx context.Context, p *app.Pipeline) error {
		return p.Orchestrator.DumpGroups(ctx, ids)
	})
}
