package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ckandump/internal/app"
)

var fixPrefix string

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Strip replacement characters from dumped CSV files",
	Long: `Scan the dumped CSV files for Unicode replacement characters
(U+FFFD) left behind by lossy catalog exports and rewrite the affected
files with those characters removed.

Examples:
  ckandump fix
  ckandump fix --prefix budget/`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringVar(&fixPrefix, "prefix", "", "only scan files under this prefix")
}

func runFix(cmd *cobra.Command, args []string) error {
	p, err := app.New(cfg, logger, printEvent)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Fixer.Run(cmd.Context(), fixPrefix)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d CSV files, fixed %d\n", res.Scanned, res.Fixed)
	return nil
}
