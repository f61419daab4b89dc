package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/tapline/internal/app"
	"github.com/dshills/tapline/internal/config"
	"github.com/dshills/tapline/internal/hooktrace"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logHooks   bool
	tracePath  string
	pluginDirs []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "tapline",
		Short: "Run build hooks tapped by Lua plugins",
		Long: `tapline drives a bundler-style hook pipeline. Lua plugins tap the hooks ` +
			`with stages and ordering constraints; first-party steps run between ` +
			`plugin stages.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a tapline.toml or tapline.yaml file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.logHooks, "log-hooks", false, "log every hook firing at debug level")
	pf.StringVar(&flags.tracePath, "trace", "", "append hook events as JSON lines to this file")
	pf.StringSliceVar(&flags.pluginDirs, "plugins", nil, "plugin directories (replaces configured paths)")

	root.AddCommand(
		newRunCmd(flags),
		newWatchCmd(flags),
		newHooksCmd(flags),
		newTraceCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and applies flag overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var opts []config.Option
	if f.configPath != "" {
		opts = append(opts, config.WithPath(f.configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logHooks {
		cfg.Log.Hooks = true
	}
	if f.tracePath != "" {
		cfg.Trace.Output = f.tracePath
	}
	if len(f.pluginDirs) > 0 {
		cfg.Plugins.Paths = f.pluginDirs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// session bundles what a command needs to drive the pipeline.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *app.Pipeline
	closers  []func() error
}

// openSession loads configuration and builds the pipeline. Plugins are
// not loaded yet.
func (f *globalFlags) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: newLogger(cfg, cmd.ErrOrStderr())}
	slog.SetDefault(s.logger)

	opts := []app.Option{app.WithLogger(s.logger)}

	if cfg.Trace.Output != "" {
		file, err := os.OpenFile(cfg.Trace.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace output: %w", err)
		}
		sessionID := cfg.Trace.Session
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		recorder := hooktrace.NewRecorder(file, hooktrace.WithSession(sessionID))
		opts = append(opts, app.WithRecorder(recorder))
		s.closers = append(s.closers, recorder.Close)
	}

	if cfg.Telemetry.Enabled {
		tel := startTelemetry()
		s.closers = append(s.closers, func() error {
			return tel.report(cmd.Context(), cmd.OutOrStdout())
		})
	}

	pipeline, err := app.New(cfg, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline = pipeline
	return s, nil
}

// close shuts the pipeline down, then closes recorders and exporters.
func (s *session) close() {
	if s.pipeline != nil {
		if err := s.pipeline.Close(context.Background()); err != nil {
			s.logger.Warn("closing pipeline", "error", err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("closing session", "error", err)
		}
	}
}

// readInputs loads the files named on the command line.
func readInputs(paths []string) ([]app.Input, error) {
	inputs := make([]app.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		inputs = append(inputs, app.Input{Path: path, Content: string(data)})
	}
	return inputs, nil
}
