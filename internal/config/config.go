package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/tapline/internal/config/loader"
)

// CandidateFiles are tried in order when no path is given.
var CandidateFiles = []string{"tapline.toml", "tapline.yaml", "tapline.yml"}

// Config is the decoded tapline configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Plugins   PluginsConfig   `toml:"plugins"`
	Stages    StagesConfig    `toml:"stages"`
	Watch     WatchConfig     `toml:"watch"`
	Trace     TraceConfig     `toml:"trace"`
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`

	// Hooks logs every hook firing at debug level.
	Hooks bool `toml:"hooks"`
}

// PluginsConfig controls plugin discovery and the Lua sandbox.
type PluginsConfig struct {
	// Paths are searched in order; the first plugin of a name wins.
	Paths []string `toml:"paths"`

	// Disabled plugins are discovered but never loaded.
	Disabled []string `toml:"disabled"`

	// Timeout bounds each call into a plugin.
	Timeout Duration `toml:"timeout"`

	// Config is passed to each plugin's setup function, keyed by plugin name.
	Config map[string]map[string]any `toml:"config"`
}

// StagesConfig holds extra breakpoints for staged hooks. A checkpoint
// step runs at each one, between the plugin taps below and above it.
type StagesConfig struct {
	ProcessAssets []int64 `toml:"processAssets"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into one rebuild.
	Debounce Duration `toml:"debounce"`

	// Paths are watched in addition to the plugin paths and inputs.
	Paths []string `toml:"paths"`
}

// TraceConfig controls the JSON-lines hook recorder.
type TraceConfig struct {
	// Output is the file hook events are appended to. Empty disables
	// recording.
	Output string `toml:"output"`

	// Session tags every recorded line. Empty uses a generated id.
	Session string `toml:"session"`
}

// TelemetryConfig controls the OpenTelemetry interceptors.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration read from strings such as "250ms".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Plugins: PluginsConfig{
			Timeout: Duration(5 * time.Second),
		},
		Watch: WatchConfig{
			Debounce: Duration(100 * time.Millisecond),
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	path    string
	fs      loader.FileSystem
	baseDir string
	noEnv   bool
}

// WithPath reads the given file. A missing file is an error.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithFS reads configuration files from fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithBaseDir sets the directory searched for CandidateFiles.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithoutEnv skips TAPLINE_ environment variables.
func WithoutEnv() Option {
	return func(o *options) {
		o.noEnv = true
	}
}

// Load builds the configuration from defaults, a file and the environment,
// and validates it.
func Load(opts ...Option) (*Config, error) {
	o := options{fs: loader.DefaultFS()}
	for _, opt := range opts {
		opt(&o)
	}

	path, err := o.resolvePath()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any)
	if path != "" {
		fileConfig, err := loader.NewFileLoaderWithFS(o.fs, path).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, fileConfig)
	}
	if !o.noEnv {
		envConfig, err := loader.NewEnvLoader(loader.EnvPrefix).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, envConfig)
	}

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) resolvePath() (string, error) {
	if o.path != "" {
		if _, err := o.fs.Stat(o.path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrConfigNotFound, o.path)
			}
			return "", err
		}
		return o.path, nil
	}
	for _, name := range CandidateFiles {
		candidate := filepath.Join(o.baseDir, name)
		if _, err := o.fs.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// Decode overlays a merged configuration map on the defaults.
func Decode(data map[string]any) (*Config, error) {
	if len(data) == 0 {
		return Default(), nil
	}

	// Defaults go through the same map merge as the other layers so lists
	// are replaced, never appended to.
	defaults, err := toMap(Default())
	if err != nil {
		return nil, err
	}
	merged := loader.DeepMerge(defaults, dropNil(data))

	raw, err := toml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return m, nil
}

// dropNil removes nil values, which TOML cannot represent.
func dropNil(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, val := range data {
		switch v := val.(type) {
		case nil:
			continue
		case map[string]any:
			out[key] = dropNil(v)
		default:
			out[key] = v
		}
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format))
	}
	if c.Plugins.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: plugins.timeout", ErrNegativeDuration))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: watch.debounce", ErrNegativeDuration))
	}

	return errors.Join(errs...)
}

// SlogLevel maps Level to a slog level. Unknown levels map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
