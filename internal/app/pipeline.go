package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/tapline/internal/config"
	"github.com/dshills/tapline/internal/hook"
	"github.com/dshills/tapline/internal/hooktrace"
	"github.com/dshills/tapline/internal/plugin"
	plua "github.com/dshills/tapline/internal/plugin/lua"
)

// Pipeline runs builds through a hook set tapped by Lua plugins.
type Pipeline struct {
	mu sync.Mutex

	cfg      *config.Config
	logger   *slog.Logger
	recorder *hooktrace.Recorder
	steps    []Step

	hooks    *Hooks
	registry *plua.Registry
	plugins  *plugin.Manager

	closed bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder records every hook event to r.
func WithRecorder(r *hooktrace.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithSteps adds first-party processAssets steps.
func WithSteps(steps ...Step) Option {
	return func(p *Pipeline) {
		p.steps = append(p.steps, steps...)
	}
}

// New creates a pipeline. Start loads its plugins.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.steps = append(p.steps, HashStep())
	for _, stage := range cfg.Stages.ProcessAssets {
		p.steps = append(p.steps, CheckpointStep(p.logger, stage))
	}

	managerConfig := plugin.ManagerConfig{
		Disabled:         cfg.Plugins.Disabled,
		Config:           cfg.Plugins.Config,
		ExecutionTimeout: cfg.Plugins.Timeout.Std(),
		Logger:           p.logger,
	}
	if len(cfg.Plugins.Paths) > 0 {
		managerConfig.Paths = cfg.Plugins.Paths
	}
	p.plugins = plugin.NewManager(managerConfig)
	p.plugins.Subscribe(func(e plugin.ManagerEvent) {
		if e.Error != nil {
			p.logger.Warn("plugin "+e.Type.String(), "plugin", e.Plugin, "error", e.Error)
			return
		}
		p.logger.Debug("plugin "+e.Type.String(), "plugin", e.Plugin)
	})

	if err := p.rebuild(); err != nil {
		return nil, err
	}
	return p, nil
}

// rebuild replaces the hook set and registry. p.mu is held or p is not
// yet shared.
func (p *Pipeline) rebuild() error {
	o := observers{
		telemetry: p.cfg.Telemetry.Enabled,
		recorder:  p.recorder,
	}
	if p.cfg.Log.Hooks {
		o.logger = p.logger
	}
	hooks, err := newHooks(o)
	if err != nil {
		return err
	}
	registry := plua.NewRegistry()
	if err := hooks.expose(registry); err != nil {
		return err
	}
	p.hooks = hooks
	p.registry = registry
	return nil
}

// Start loads every enabled plugin. Plugins that fail are reported in
// the error; the others stay loaded.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	return p.plugins.LoadAll(ctx, p.registry)
}

// Reload unloads the plugins, replaces every hook and loads the plugins
// again. Taps cannot be removed from a hook, so the old hooks are dropped
// whole.
func (p *Pipeline) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	if err := p.plugins.UnloadAll(ctx); err != nil {
		p.logger.Warn("unloading plugins", "error", err)
	}
	if err := p.rebuild(); err != nil {
		return err
	}
	p.logger.Info("hooks rebuilt")
	return p.plugins.LoadAll(ctx, p.registry)
}

// Hooks returns the current hook set. It is replaced by Reload.
func (p *Pipeline) Hooks() *Hooks {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hooks
}

// Registry returns the current Lua registry. It is replaced by Reload.
func (p *Pipeline) Registry() *plua.Registry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry
}

// Plugins returns the plugin manager.
func (p *Pipeline) Plugins() *plugin.Manager {
	return p.plugins
}

// Run performs one build over inputs.
func (p *Pipeline) Run(ctx context.Context, inputs []Input) (*Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPipelineClosed
	}
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	start := time.Now()
	b := &build{
		ctx:    ctx,
		hooks:  p.hooks,
		steps:  p.steps,
		assets: NewAssets(),
		session: &Session{
			ID:        uuid.NewString(),
			StartedAt: start,
			Meta:      make(map[string]any),
		},
	}
	for _, in := range inputs {
		b.session.Inputs = append(b.session.Inputs, in.Path)
	}

	logger := p.logger.With("session", b.session.ID)
	logger.Debug("build started", "inputs", len(inputs))

	stats, err := b.run(inputs)
	if err != nil {
		logger.Error("build failed", "error", err)
		return nil, err
	}
	stats.Elapsed = time.Since(start)
	stats.ElapsedMS = stats.Elapsed.Milliseconds()
	logger.Info("build finished", "assets", len(stats.Assets), "elapsed", stats.Elapsed)
	return stats, nil
}

// Close unloads every plugin.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.plugins.UnloadAll(ctx)
}

// build is the state of one Run.
type build struct {
	ctx     context.Context
	hooks   *Hooks
	steps   []Step
	session *Session
	assets  *Assets
}

func (b *build) run(inputs []Input) (*Stats, error) {
	if _, err := b.hooks.Initialize.Call(b.session); err != nil {
		return nil, &PhaseError{Phase: HookInitialize, Err: err}
	}

	for _, in := range inputs {
		if err := b.module(in); err != nil {
			return nil, err
		}
	}

	if err := b.processAssets(); err != nil {
		return nil, &PhaseError{Phase: HookProcessAssets, Err: err}
	}
	if _, err := b.hooks.Emit.Promise(b.assets).Await(b.ctx); err != nil {
		return nil, &PhaseError{Phase: HookEmit, Err: err}
	}

	stats := buildStats(b.session, b.assets)
	if _, err := b.hooks.AfterEmit.Promise(stats).Await(b.ctx); err != nil {
		return nil, &PhaseError{Phase: HookAfterEmit, Err: err}
	}
	if _, err := b.hooks.Finished.Promise(stats).Await(b.ctx); err != nil {
		return nil, &PhaseError{Phase: HookFinished, Err: err}
	}
	return stats, nil
}

// module resolves and transforms one input into an asset.
func (b *build) module(in Input) error {
	moduleType := ModuleType(in.Path)

	resolved := in.Path
	if h, ok := b.hooks.ResolveFor.Get(moduleType); ok && h.IsUsed() {
		req := &ResolveRequest{
			Request: in.Path,
			Type:    moduleType,
			Context: filepath.Dir(in.Path),
		}
		result, err := h.Promise(req).Await(b.ctx)
		if err != nil {
			return &PhaseError{Phase: HookResolveFor, Input: in.Path, Err: err}
		}
		resolved = result.OrElse(in.Path)
	}

	src := &Source{Path: resolved, Type: moduleType, Content: in.Content}
	out, err := b.hooks.Transform.Call(src)
	if err != nil {
		return &PhaseError{Phase: HookTransform, Input: in.Path, Err: err}
	}
	src = out.OrElse(src)

	name := filepath.Base(src.Path)
	if _, exists := b.assets.Get(name); exists {
		return &PhaseError{Phase: HookTransform, Input: in.Path, Err: fmt.Errorf("%w: %s", ErrDuplicateAsset, name)}
	}
	b.assets.Set(name, src.Content)
	return nil
}

// processAssets runs the hook split at the first-party steps.
func (b *build) processAssets() error {
	done := hook.NewPromise[hook.Maybe[hook.Void]]()
	b.hooks.ProcessAssets.CallStaged(b.assets, b.steps, func(err error, result hook.Maybe[hook.Void]) {
		if err != nil {
			done.Reject(err)
			return
		}
		done.Resolve(result)
	})
	_, err := done.Await(b.ctx)
	return err
}
