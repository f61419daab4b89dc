package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	plua "github.com/dshills/tapline/internal/plugin/lua"
)

// Manager manages the lifecycle of all plugins.
type Manager struct {
	mu sync.RWMutex

	loader *Loader

	// Loaded plugins by name
	plugins map[string]*Host

	// Plugin load order (dependencies first)
	loadOrder []string

	eventHandlers []EventHandler

	config ManagerConfig
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// Paths are directories to search for plugins.
	Paths []string

	// Disabled plugins are discovered but never loaded.
	Disabled []string

	// Config holds user configuration per plugin name.
	Config map[string]map[string]any

	// ExecutionTimeout bounds each call into a plugin. Zero uses the
	// Lua runtime default.
	ExecutionTimeout time.Duration

	Logger *slog.Logger
}

// EventHandler handles plugin manager events.
// Handlers must not call back into the Manager. Panics are recovered.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a plugin manager event.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	Error  error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventPluginLoaded is emitted when a plugin is loaded.
	EventPluginLoaded ManagerEventType = iota
	// EventPluginUnloaded is emitted when a plugin is unloaded.
	EventPluginUnloaded
	// EventPluginActivated is emitted when a plugin's setup has run.
	EventPluginActivated
	// EventPluginError is emitted when a plugin fails to load or activate.
	EventPluginError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventPluginLoaded:
		return "loaded"
	case EventPluginUnloaded:
		return "unloaded"
	case EventPluginActivated:
		return "activated"
	case EventPluginError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates a new plugin manager.
func NewManager(config ManagerConfig) *Manager {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	opts := []LoaderOption{}
	if config.Paths != nil {
		opts = append(opts, WithPaths(config.Paths...))
	}
	return &Manager{
		loader:  NewLoader(opts...),
		plugins: make(map[string]*Host),
		config:  config,
	}
}

// Discover searches for available plugins.
func (m *Manager) Discover() ([]*PluginInfo, error) {
	return m.loader.Discover()
}

// Load loads and activates a plugin by name against reg.
func (m *Manager) Load(ctx context.Context, name string, reg *plua.Registry) (*Host, error) {
	if slices.Contains(m.config.Disabled, name) {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrPluginDisabled)
	}

	m.mu.RLock()
	_, exists := m.plugins[name]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}

	info, err := m.loader.FindPlugin(name)
	if err != nil {
		return nil, err
	}
	if info.Error != nil {
		return nil, fmt.Errorf("plugin %q: %w", name, info.Error)
	}

	for _, dep := range info.Manifest.Dependencies {
		m.mu.RLock()
		host, ok := m.plugins[dep]
		m.mu.RUnlock()
		if !ok || !host.State().IsUsable() {
			return nil, fmt.Errorf("plugin %q: %w: %s", name, ErrDependencyNotFound, dep)
		}
	}

	opts := []HostOption{
		WithHostConfig(m.config.Config[name]),
		WithHostLogger(m.config.Logger),
	}
	if m.config.ExecutionTimeout > 0 {
		opts = append(opts, WithHostExecutionTimeout(m.config.ExecutionTimeout))
	}
	host, err := NewHost(info.Manifest, opts...)
	if err != nil {
		return nil, err
	}

	if err := host.Load(ctx, reg); err != nil {
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return nil, fmt.Errorf("failed to load plugin %q: %w", name, err)
	}

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		host.Unload(ctx)
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	m.plugins[name] = host
	m.loadOrder = append(m.loadOrder, name)
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventPluginLoaded, Plugin: name})

	if err := host.Activate(ctx); err != nil {
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: name, Error: err})
		return host, fmt.Errorf("failed to activate plugin %q: %w", name, err)
	}
	m.emitEvent(ManagerEvent{Type: EventPluginActivated, Plugin: name})
	return host, nil
}

// LoadAll discovers plugins and loads every enabled one against reg,
// dependencies first. Plugins that fail do not stop the others; their
// errors are joined in the result.
func (m *Manager) LoadAll(ctx context.Context, reg *plua.Registry) error {
	plugins, discoverErr := m.loader.Discover()

	var loadErrors []error
	if discoverErr != nil {
		loadErrors = append(loadErrors, discoverErr)
	}

	var enabled []*PluginInfo
	for _, info := range plugins {
		if info.Error != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, info.Error))
			continue
		}
		if !slices.Contains(m.config.Disabled, info.Name) {
			enabled = append(enabled, info)
		}
	}

	ordered, err := loadOrder(enabled)
	if err != nil {
		loadErrors = append(loadErrors, err)
	}
	for _, info := range ordered {
		if _, err := m.Load(ctx, info.Name, reg); err != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d plugins: %w", len(loadErrors), errors.Join(loadErrors...))
	}
	return nil
}

// loadOrder sorts plugins so dependencies come first, keeping name order
// otherwise. Plugins on a dependency cycle are left out.
func loadOrder(plugins []*PluginInfo) ([]*PluginInfo, error) {
	byName := make(map[string]*PluginInfo, len(plugins))
	for _, info := range plugins {
		byName[info.Name] = info
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	marks := make(map[string]int, len(plugins))
	ordered := make([]*PluginInfo, 0, len(plugins))
	var cycles []string

	var visit func(info *PluginInfo) bool
	visit = func(info *PluginInfo) bool {
		switch marks[info.Name] {
		case visiting:
			return false
		case visited:
			return true
		}
		marks[info.Name] = visiting
		ok := true
		for _, dep := range info.Manifest.Dependencies {
			if next, found := byName[dep]; found && !visit(next) {
				ok = false
			}
		}
		marks[info.Name] = visited
		if !ok {
			cycles = append(cycles, info.Name)
			return false
		}
		ordered = append(ordered, info)
		return true
	}
	for _, info := range plugins {
		visit(info)
	}

	if len(cycles) > 0 {
		slices.Sort(cycles)
		return ordered, fmt.Errorf("%w: %v", ErrCyclicDependency, cycles)
	}
	return ordered, nil
}

// Unload unloads a plugin by name.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	host, exists := m.plugins[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	delete(m.plugins, name)
	m.loadOrder = slices.DeleteFunc(m.loadOrder, func(n string) bool { return n == name })
	m.mu.Unlock()

	if err := host.Unload(ctx); err != nil {
		return fmt.Errorf("failed to unload plugin %q: %w", name, err)
	}

	m.emitEvent(ManagerEvent{Type: EventPluginUnloaded, Plugin: name})
	return nil
}

// UnloadAll unloads all plugins in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := slices.Clone(m.loadOrder)
	m.mu.RUnlock()
	slices.Reverse(names)

	var unloadErrors []error
	for _, name := range names {
		if err := m.Unload(ctx, name); err != nil {
			unloadErrors = append(unloadErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(unloadErrors) > 0 {
		return fmt.Errorf("failed to unload %d plugins: %w", len(unloadErrors), errors.Join(unloadErrors...))
	}
	return nil
}

// Reload unloads every plugin and loads them again against reg, which is
// expected to expose a freshly built hook set.
func (m *Manager) Reload(ctx context.Context, reg *plua.Registry) error {
	if err := m.UnloadAll(ctx); err != nil {
		return fmt.Errorf("reload unload failed: %w", err)
	}
	return m.LoadAll(ctx, reg)
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	host, exists := m.plugins[name]
	return host, exists
}

// List returns all loaded plugins in load order.
func (m *Manager) List() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Host, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if host, exists := m.plugins[name]; exists {
			result = append(result, host)
		}
	}
	return result
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// Errors returns all plugins in error state with their errors.
func (m *Manager) Errors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for name, host := range m.plugins {
		if host.State() == StateError && host.Error() != nil {
			errs[name] = host.Error()
		}
	}
	return errs
}

// Subscribe adds an event handler and returns a function removing it.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// Loader returns the underlying loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// emitEvent sends an event to all handlers outside the lock.
func (m *Manager) emitEvent(event ManagerEvent) {
	m.mu.RLock()
	handlers := slices.Clone(m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.config.Logger.Error("plugin event handler panicked",
						"event", event.Type.String(),
						"plugin", event.Plugin,
						"panic", r,
					)
				}
			}()
			handler(event)
		}()
	}
}
