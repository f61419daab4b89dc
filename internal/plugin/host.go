package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/tapline/internal/plugin/lua"
)

// SetupFunction is the global a plugin may define to receive its config.
const SetupFunction = "setup"

// Host owns a single plugin's Lua state and lifecycle.
type Host struct {
	mu sync.RWMutex

	// Identity. id changes on every load.
	id       uuid.UUID
	name     string
	manifest *Manifest

	// Lua runtime
	state    *plua.State
	exec     *plua.Executor
	stopExec context.CancelFunc

	pluginState State
	err         error
	loadedAt    time.Time

	config           map[string]any
	executionTimeout time.Duration
	logger           *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostExecutionTimeout sets the time budget for each call into the plugin.
func WithHostExecutionTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executionTimeout = d
	}
}

// WithHostConfig overlays user configuration on the manifest defaults.
func WithHostConfig(config map[string]any) HostOption {
	return func(h *Host) {
		maps.Copy(h.config, config)
	}
}

// WithHostLogger sets the logger that receives plugin output.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHost creates a new plugin host for the given manifest.
func NewHost(manifest *Manifest, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}

	h := &Host{
		name:             manifest.Name,
		manifest:         manifest,
		pluginState:      StateUnloaded,
		config:           manifest.ConfigDefaults(),
		executionTimeout: plua.DefaultExecutionTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ID identifies the current load of the plugin.
func (h *Host) ID() uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// State returns the current plugin state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pluginState
}

// Error returns the error that moved the plugin to StateError.
func (h *Host) Error() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Config returns a copy of the plugin configuration.
func (h *Host) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.config)
}

// Load creates the plugin's Lua state, installs reg and runs the entry
// point, which registers the plugin's taps.
func (h *Host) Load(ctx context.Context, reg *plua.Registry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateUnloaded {
		return ErrAlreadyLoaded
	}

	exposed := make(map[string]bool)
	for _, info := range reg.Hooks() {
		exposed[info.Name] = true
	}
	for _, name := range h.manifest.Hooks {
		if !exposed[name] {
			return h.fail(fmt.Errorf("%w: %s", ErrHookUnavailable, name))
		}
	}

	id := uuid.New()
	logger := h.logger.With("plugin", h.name, "instance", id.String())

	state, err := plua.NewState(
		plua.WithName(h.name),
		plua.WithExecutionTimeout(h.executionTimeout),
		plua.WithLogger(logger),
	)
	if err != nil {
		return h.fail(err)
	}

	exec := plua.NewExecutor(state, 0)
	execCtx, stop := context.WithCancel(context.Background())
	go exec.Run(execCtx)

	cleanup := func() {
		exec.Close()
		stop()
		state.Close()
	}
	if err := reg.Install(state, exec); err != nil {
		cleanup()
		return h.fail(err)
	}
	if err := state.DoFile(ctx, h.manifest.MainPath()); err != nil {
		cleanup()
		return h.fail(fmt.Errorf("failed to load plugin: %w", err))
	}

	h.id = id
	h.state = state
	h.exec = exec
	h.stopExec = stop
	h.pluginState = StateLoaded
	h.loadedAt = time.Now()
	h.err = nil
	logger.Debug("plugin loaded", "main", h.manifest.MainPath())
	return nil
}

// fail records err and moves the plugin to StateError. h.mu is held.
func (h *Host) fail(err error) error {
	h.pluginState = StateError
	h.err = err
	return err
}

// Activate calls the plugin's setup function with its configuration.
// Plugins without setup become active directly.
func (h *Host) Activate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateLoaded {
		return ErrNotLoaded
	}

	config := maps.Clone(h.config)
	err := h.state.Do(ctx, func(L *lua.LState) error {
		fn, ok := L.GetGlobal(SetupFunction).(*lua.LFunction)
		if !ok {
			return nil
		}
		L.Push(fn)
		L.Push(plua.ToLuaValue(L, config))
		return L.PCall(1, 0, nil)
	})
	if err != nil {
		return h.fail(fmt.Errorf("setup failed: %w", err))
	}

	h.pluginState = StateActive
	return nil
}

// Unload closes the plugin's Lua state. Taps it registered stay on their
// hooks and fail with lua.ErrStateClosed if invoked.
func (h *Host) Unload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		return ErrNotLoaded
	}

	h.exec.Close()
	h.stopExec()
	err := h.state.Close()

	h.state = nil
	h.exec = nil
	h.stopExec = nil
	h.pluginState = StateUnloaded
	return err
}

// Stats returns a snapshot of the host.
func (h *Host) Stats() HostStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HostStats{
		ID:       h.id.String(),
		Name:     h.name,
		Version:  h.manifest.Version,
		State:    h.pluginState,
		LoadedAt: h.loadedAt,
	}
}

// HostStats describes a plugin host.
type HostStats struct {
	ID       string
	Name     string
	Version  string
	State    State
	LoadedAt time.Time
}
