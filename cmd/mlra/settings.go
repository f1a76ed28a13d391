// ABOUTME: The settings command group: read and change the persisted settings snapshot
// ABOUTME: Writes are validated before commit, the same way the HTTP API does it

package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/2389/mlra/internal/settings"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change workflow settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get [path]",
			Short: "Print the current settings, or one dotted path such as experiment.randomSeed",
			Args:  cobra.MaximumNArgs(1),
			RunE: withApp(opts, func(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				v, err := settings.Lookup(a.settings.Get(), path)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			}),
		},
		&cobra.Command{
			Use:   "defaults",
			Short: "Print the compiled-in defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printJSON(cmd.OutOrStdout(), settings.Defaults())
			},
		},
		&cobra.Command{
			Use:     "set <path> <value>",
			Short:   "Set one field; the value is parsed as JSON, falling back to a string",
			Example: "  mlra settings set experiment.randomSeed 7\n  mlra settings set experiment.metrics '[\"F1\",\"BLEU\"]'",
			Args:    cobra.ExactArgs(2),
			RunE: withApp(opts, func(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
				if err := a.settings.SetValidated(args[0], args[1]); err != nil {
					return err
				}
				v, err := settings.Lookup(a.settings.Get(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			}),
		},
		&cobra.Command{
			Use:     "patch <json>",
			Short:   "Merge a JSON object into the settings field by field",
			Example: `  mlra settings patch '{"reporting":{"format":"pdf"}}'`,
			Args:    cobra.ExactArgs(1),
			RunE: withApp(opts, func(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
				if err := a.settings.ApplyValidated([]byte(args[0])); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.settings.Get())
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the defaults",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
				a.settings.Reset()
				fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "paths",
			Short: "List every settable dotted path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				v, err := settings.Lookup(settings.Defaults(), "")
				if err != nil {
					return err
				}
				for _, p := range leafPaths("", v) {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			},
		},
	)
	return cmd
}

// leafPaths flattens a decoded JSON object into sorted dotted paths.
func leafPaths(prefix string, v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{prefix}
	}
	var out []string
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		out = append(out, leafPaths(p, obj[k])...)
	}
	return out
}
