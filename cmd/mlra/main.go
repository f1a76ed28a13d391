// ABOUTME: Entry point for the mlra research console
// ABOUTME: Builds the cobra command tree and maps errors to a red message and exit code 1

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "mlra",
		Short:         "ML research reproducibility console",
		Long:          "mlra keeps workflow settings, submits papers to the research backend, and turns experiment results into reports.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $MLRA_CONFIG or ~/.config/mlra/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newSettingsCmd(opts),
		newIngestCmd(opts),
		newResultCmd(opts),
		newReportCmd(opts),
		newTokenCmd(opts),
	)
	return root
}
