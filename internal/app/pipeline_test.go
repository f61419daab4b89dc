package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dshills/tapline/internal/config"
	"github.com/dshills/tapline/internal/hook"
)

func newTestPipeline(t *testing.T, plugins map[string]string, mutate ...func(*config.Config)) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	for name, script := range plugins {
		pluginDir := filepath.Join(dir, name)
		if err := os.MkdirAll(pluginDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(pluginDir, "init.lua"), []byte(script), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Plugins.Paths = []string{dir}
	cfg.Plugins.Timeout = config.Duration(2 * time.Second)
	for _, m := range mutate {
		m(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := New(cfg, WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return p
}

func runBuild(t *testing.T, p *Pipeline, inputs ...Input) (*Stats, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Run(ctx, inputs)
}

const bannerPlugin = `
local hooks = require("tapline.hooks")
local text = ""

function setup(config)
  text = config.text or ""
end

hooks.tap("initialize", "Stamp", function(session)
  session:set("plugin", "banner")
end)

hooks.tapFor("resolveFor", "javascript", "Alias", function(req)
  if req.request == "src/a.js" then
    return "lib/alias.js"
  end
end)

hooks.tap("transform", "Upper", function(src)
  src.content = string.upper(src.content)
  return src
end)

hooks.tap("processAssets", {name = "Banner", stage = 100}, function(assets)
  for _, name in ipairs(assets:names()) do
    assets:set(name, text .. assets:get(name))
  end
end)

hooks.tap("done", "Report", function(stats)
  print("assets", #stats.assets)
end)
`

func TestPipelineRunWithLuaPlugin(t *testing.T) {
	p := newTestPipeline(t, map[string]string{"banner": bannerPlugin}, func(cfg *config.Config) {
		cfg.Plugins.Config = map[string]map[string]any{
			"banner": {"text": "/*b*/"},
		}
	})

	hooks := p.Hooks()
	var meta map[string]any
	hooks.Initialize.Tap("Inspect", hook.Action(func(s *Session) error {
		meta = s.Meta
		return nil
	}))
	doneCalls := 0
	hooks.Done.Tap("Count", hook.Action(func(*Stats) error {
		doneCalls++
		return nil
	}))

	stats, err := runBuild(t, p,
		Input{Path: "src/a.js", Content: "let a"},
		Input{Path: "style.css", Content: "body{}"},
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if meta["plugin"] != "banner" {
		t.Errorf("session meta = %v, want plugin=banner", meta)
	}
	if !slices.Equal(stats.Assets, []string{"alias.js", "style.css"}) {
		t.Fatalf("Assets = %v", stats.Assets)
	}
	want := map[string]string{
		"alias.js":  "/*b*/LET A",
		"style.css": "/*b*/BODY{}",
	}
	for name, content := range want {
		if stats.Sizes[name] != len(content) {
			t.Errorf("Sizes[%s] = %d, want %d", name, stats.Sizes[name], len(content))
		}
		wantHash := strconv.FormatUint(xxhash.Sum64String(content), 16)
		if stats.Hashes[name] != wantHash {
			t.Errorf("Hashes[%s] = %q, want hash of %q", name, stats.Hashes[name], content)
		}
	}
	if doneCalls != 2 {
		t.Errorf("done taps ran %d times, want 2 (afterEmit and finished)", doneCalls)
	}
}

func TestPipelineStepsInterleave(t *testing.T) {
	p := newTestPipeline(t, nil)
	hooks := p.Hooks()

	var seen []string
	check := func(name string) hook.SyncFunc[*Assets, hook.Void] {
		return hook.Action(func(a *Assets) error {
			_, hashed := a.Info("a.txt")[InfoHash]
			seen = append(seen, name+":"+strconv.FormatBool(hashed))
			return nil
		})
	}
	hooks.ProcessAssets.Tap("Report", check("report"), hook.WithStage(StageReport))
	hooks.ProcessAssets.Tap("Optimize", check("optimize"), hook.WithStage(StageOptimize))

	if _, err := runBuild(t, p, Input{Path: "a.txt", Content: "x"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"optimize:false", "report:true"}
	if !slices.Equal(seen, want) {
		t.Errorf("seen = %v, want %v", seen, want)
	}
}

func TestPipelineLuaErrors(t *testing.T) {
	p := newTestPipeline(t, map[string]string{
		"broken": `
local hooks = require("tapline.hooks")
hooks.tap("emit", "Explode", function(assets)
  error("disk full")
end)
`,
	})

	_, err := runBuild(t, p, Input{Path: "a.js", Content: "1"})
	var perr *PhaseError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want *PhaseError", err)
	}
	if perr.Phase != HookEmit {
		t.Errorf("Phase = %q, want %q", perr.Phase, HookEmit)
	}
	var tapErr *hook.TapError
	if !errors.As(err, &tapErr) || tapErr.Tap != "Explode" {
		t.Errorf("error = %v, want TapError from Explode", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want lua message", err)
	}
}

func TestPipelineDuplicateAsset(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := runBuild(t, p,
		Input{Path: "a/index.js", Content: "1"},
		Input{Path: "b/index.js", Content: "2"},
	)
	if !errors.Is(err, ErrDuplicateAsset) {
		t.Errorf("Run() error = %v, want ErrDuplicateAsset", err)
	}
}

func TestPipelineLogHooks(t *testing.T) {
	var buf strings.Builder
	cfg := config.Default()
	cfg.Plugins.Paths = []string{t.TempDir()}
	cfg.Log.Hooks = true
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := New(cfg, WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close(context.Background())

	if err := p.Hooks().Transform.Tap("Trim", func(src *Source) (hook.Maybe[*Source], error) {
		return hook.None[*Source](), nil
	}); err != nil {
		t.Fatalf("Tap() error = %v", err)
	}
	if _, err := runBuild(t, p, Input{Path: "main.js", Content: "x"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"hook=transform",
		"hook=emit",
		"tap=Trim",
		`msg="hook called"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestPipelineNoInputs(t *testing.T) {
	p := newTestPipeline(t, nil)
	if _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrNoInputs) {
		t.Errorf("Run() error = %v, want ErrNoInputs", err)
	}
}

func TestPipelineReload(t *testing.T) {
	p := newTestPipeline(t, map[string]string{"banner": bannerPlugin})
	before := p.Hooks()
	firstID, _ := p.Plugins().Get("banner")
	id := firstID.ID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := p.Hooks()
	if after == before {
		t.Fatal("Reload() kept the old hook set")
	}
	if n := len(after.Transform.Taps()); n != 1 {
		t.Errorf("transform taps after reload = %d, want 1", n)
	}
	host, ok := p.Plugins().Get("banner")
	if !ok || host.ID() == id {
		t.Error("Reload() should load a new plugin instance")
	}

	stats, err := runBuild(t, p, Input{Path: "x.css", Content: "a"})
	if err != nil {
		t.Fatalf("Run() after reload error = %v", err)
	}
	if stats.Sizes["x.css"] != 1 {
		t.Errorf("Sizes = %v", stats.Sizes)
	}
}

func TestPipelineClosed(t *testing.T) {
	p := newTestPipeline(t, nil)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := p.Run(context.Background(), []Input{{Path: "a"}}); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("Run() error = %v, want ErrPipelineClosed", err)
	}
	if err := p.Reload(context.Background()); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("Reload() error = %v, want ErrPipelineClosed", err)
	}
}

func TestDescribe(t *testing.T) {
	p := newTestPipeline(t, map[string]string{"banner": bannerPlugin})

	var names []string
	var banner *TapDescription
	for _, d := range p.Hooks().Describe() {
		name := d.Name
		if d.Keyed {
			name += "[" + d.Key + "]"
		}
		names = append(names, name)
		if d.Name == HookProcessAssets {
			for i := range d.Taps {
				if d.Taps[i].Name == "Banner" {
					banner = &d.Taps[i]
				}
			}
		}
	}

	wantNames := []string{
		"initialize", "resolveFor[javascript]", "transform", "processAssets",
		"emit", "afterEmit", "finished",
	}
	if !slices.Equal(names, wantNames) {
		t.Errorf("Describe() names = %v, want %v", names, wantNames)
	}
	if banner == nil || banner.Stage != 100 || banner.Kind != hook.PromiseTap {
		t.Errorf("Banner tap = %+v, want stage 100 promise tap", banner)
	}
}

func TestModuleType(t *testing.T) {
	tests := map[string]string{
		"a.js":      "javascript",
		"b.TSX":     "typescript",
		"c.css":     "css",
		"d.json":    "json",
		"e.png":     "asset",
		"noext":     "asset",
		"page.html": "html",
		"lib/x.mjs": "javascript",
	}
	for path, want := range tests {
		if got := ModuleType(path); got != want {
			t.Errorf("ModuleType(%q) = %q, want %q", path, got, want)
		}
	}
}
