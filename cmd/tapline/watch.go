package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/tapline/internal/plugin"
	"github.com/dshills/tapline/internal/watch"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [inputs...]",
		Short: "Rebuild when inputs or plugins change",
		Long: `watch runs a build, then rebuilds whenever an input changes. A change ` +
			`under a plugin directory reloads every plugin against a fresh hook set first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := flags.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			pluginDirs := s.cfg.Plugins.Paths
			if len(pluginDirs) == 0 {
				pluginDirs = plugin.DefaultPluginPaths()
			}

			w, err := watch.New(
				watch.WithDebounce(s.cfg.Watch.Debounce.Std()),
				watch.WithLogger(s.logger),
			)
			if err != nil {
				return err
			}
			defer w.Close()

			for _, target := range slices.Concat(args, pluginDirs, s.cfg.Watch.Paths) {
				if err := w.Add(target); err != nil {
					if errors.Is(err, watch.ErrPathNotExist) {
						s.logger.Debug("not watching missing path", "path", target)
						continue
					}
					return err
				}
			}

			if err := s.pipeline.Start(ctx); err != nil {
				s.logger.Warn("loading plugins", "error", err)
			}
			rebuild := func() {
				inputs, err := readInputs(args)
				if err != nil {
					s.logger.Error("reading inputs", "error", err)
					return
				}
				stats, err := s.pipeline.Run(ctx, inputs)
				if err != nil {
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "built %s\n", strings.Join(stats.Assets, ", "))
			}
			rebuild()

			err = w.Run(ctx, func(events []watch.Event) {
				if touchesAny(events, pluginDirs) {
					if err := s.pipeline.Reload(ctx); err != nil {
						s.logger.Warn("reloading plugins", "error", err)
					}
				}
				rebuild()
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// escapes reports whether a relative path leaves its base directory.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// touchesAny reports whether an event lies under one of dirs.
func touchesAny(events []watch.Event, dirs []string) bool {
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		for _, e := range events {
			if rel, err := filepath.Rel(abs, e.Path); err == nil && !escapes(rel) {
				return true
			}
		}
	}
	return false
}
