// ABOUTME: Shared wiring for CLI commands: config, logger, storage, settings and backend
// ABOUTME: Every command builds one app and closes it when done

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/2389/mlra/internal/backend"
	"github.com/2389/mlra/internal/config"
	"github.com/2389/mlra/internal/settings"
	"github.com/2389/mlra/internal/store"
)

type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	store      store.Store
	settings   *settings.Store
}

func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, opts.configPath, nil
	}
	cfg, path, err := config.LoadDefault()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// openApp loads config and opens storage. Extra observers are attached to
// the settings store alongside the slog observer.
func openApp(cmd *cobra.Command, opts *rootOptions, observers ...settings.Observer) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	obs := append([]settings.Observer{settings.NewLogObserver(logger.With("component", "settings"))}, observers...)
	ss := settings.New(cmd.Context(),
		settings.NewKVPersister(st, cfg.Storage.SettingsKey),
		settings.WithObserver(settings.Observers(obs...)),
		settings.WithLogger(logger),
	)

	return &app{cfg: cfg, configPath: path, logger: logger, store: st, settings: ss}, nil
}

func (a *app) Close() error {
	a.settings.Close()
	return a.store.Close()
}

func (a *app) backendClient() (*backend.Client, error) {
	return backend.New(
		backend.ResolveBaseURL(a.cfg.Backend.BaseURL),
		backend.WithTimeout(a.cfg.Backend.Timeout),
		backend.WithLogger(a.logger),
	)
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
