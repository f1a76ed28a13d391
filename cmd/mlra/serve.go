// ABOUTME: The serve command: runs the HTTP API until interrupted
// ABOUTME: Wires metrics, dedupe, auth and the backend client into the server

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mlra/internal/auth"
	"github.com/2389/mlra/internal/dedupe"
	"github.com/2389/mlra/internal/metrics"
	"github.com/2389/mlra/internal/server"
)

const banner = `
           _
 _ __ ___ | |_ __ __ _
| '_ ' _ \| | '__/ _' |
| | | | | | | | | (_| |
|_| |_| |_|_|_|  \__,_|
`

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the HTTP API. The research backend URL comes from backend.base_url, overridden by MLRA_API_BASE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	m := metrics.New(true)
	a, err := openApp(cmd, opts, metrics.NewSettingsObserver(m))
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	client, err := a.backendClient()
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating token verifier: %w", err)
		}
		verifier = v
	}

	srv, err := server.New(cfg, server.Deps{
		Settings: a.settings,
		Store:    a.store,
		Backend:  client,
		Dedupe:   dedupe.New(cfg.Ingest.DedupeTTL, cfg.Ingest.DedupeMaxEntries),
		Verifier: verifier,
		Metrics:  m,
		Logger:   a.logger,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	printStartup(cmd, a, client.BaseURL(), verifier != nil)

	a.logger.Info("starting mlra",
		"config", a.configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"storage", cfg.Storage.Driver,
		"backend", client.BaseURL(),
	)
	return srv.Run(cmd.Context())
}

func printStartup(cmd *cobra.Command, a *app, backendURL string, authEnabled bool) {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	line := func(label, value string) {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	line("Config", a.configPath)
	line("Storage", a.cfg.Storage.Driver+" "+a.cfg.Storage.Path)
	line("Backend", backendURL)

	if a.cfg.Tailscale.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Tailscale: ")
		cyan.Fprint(out, a.cfg.Tailscale.Hostname)
		if a.cfg.Tailscale.Funnel {
			yellow.Fprint(out, " [funnel]")
		}
		if a.cfg.Tailscale.Ephemeral {
			gray.Fprint(out, " (ephemeral)")
		}
		fmt.Fprintln(out)
	} else {
		line("HTTP", a.cfg.Server.HTTPAddr)
	}
	if !authEnabled {
		yellow.Fprintln(out, "    ! auth disabled: set auth.jwt_secret to protect mutations")
	}
	if a.cfg.Metrics.Enabled {
		line("Metrics", a.cfg.Metrics.Path)
	}
	if a.cfg.MCP.Enabled {
		line("MCP", "/mcp")
	}
	fmt.Fprintln(out)
}
