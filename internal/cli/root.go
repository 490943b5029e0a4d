// Package cli provides the command-line interface for ckandump.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"ckandump/internal/app"
	"ckandump/internal/config"
	"ckandump/internal/progress"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgFile string
	output  string
	address string
	verbose bool

	// Global config and logger
	cfg      config.Config
	logger   *slog.Logger
	logClose func() error
)

// defaultConfigFile is picked up when --config is not given and the
// file exists.
const defaultConfigFile = "ckandump.yaml"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ckandump",
	Short: "Dump datasets from a CKAN catalog",
	Long: `Ckandump crawls a CKAN catalog and downloads its datasets.

Package and group metadata is fetched through the CKAN action API,
resources are filtered by MIME type and written to a local directory
tree, one subdirectory per group and package. Files that already exist
are skipped, so an interrupted dump can be resumed by running the same
command again.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		switch {
		case cfgFile != "":
			cfg, err = config.LoadFromFile(cfgFile)
		case fileExists(defaultConfigFile):
			cfg, err = config.LoadFromFile(defaultConfigFile)
		default:
			cfg = config.Default()
		}
		if err != nil {
			return err
		}
		if err := cfg.LoadFromEnv(); err != nil {
			return err
		}

		// Flags win over file and environment.
		if address != "" {
			cfg.Address = address
		}
		if output != "" {
			cfg.OutputDir = output
		}
		if verbose {
			cfg.Verbose = true
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		logger, logClose = config.SetupLogger(cfg.LogFile, level)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logClose != nil {
			if err := logClose(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute runs the root command with signal-driven cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "catalog address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(fixCmd)
}

// runPipeline builds the pipeline, runs fn against it and prints the
// run summary. A run with branch errors or failed downloads yields an
// error so the process exits non-zero.
func runPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *app.Pipeline) error) error {
	p, err := app.New(cfg, logger, printEvent)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if err := fn(ctx, p); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nDump cancelled.")
			os.Exit(130)
		}
		return err
	}

	snap := p.Tracker.Snapshot()
	fmt.Printf("\nDone. Packages: %d, downloaded: %d, skipped: %d, failed: %d (%.2f MB)\n",
		snap.Packages, snap.Downloaded, snap.Skipped, snap.Failed,
		float64(snap.Bytes)/1024/1024)

	report := p.Orchestrator.Report()
	for _, be := range report.Errors() {
		fmt.Fprintf(os.Stderr, "  %s %s: %v\n", be.Scope, be.ID, be.Err)
	}
	if !report.OK() {
		return fmt.Errorf("%d branches failed", len(report.Errors()))
	}
	if snap.Failed > 0 {
		return fmt.Errorf("%d downloads failed, see %s", snap.Failed, filepath.Join(cfg.OutputDir, cfg.ErrorLog))
	}
	return nil
}

func printEvent(event progress.Event) {
	if event.Level == progress.LevelVerbose && !cfg.Verbose {
		return
	}

	prefix := "   "
	switch event.Level {
	case progress.LevelError:
		prefix = "!! "
	case progress.LevelWarning:
		prefix = " ! "
	case progress.LevelSuccess:
		prefix = "ok "
	case progress.LevelInfo:
		prefix = " * "
	}

	fmt.Println(prefix + event.Message)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
