package app

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Input is a file handed to a build.
type Input struct {
	Path    string
	Content string
}

// Session describes one build.
type Session struct {
	ID        string
	Inputs    []string
	StartedAt time.Time

	// Meta is free-form data plugins may attach during initialize.
	Meta map[string]any
}

// ResolveRequest asks resolveFor taps where an input lives.
type ResolveRequest struct {
	Request string `json:"request"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// Source is a module's content threaded through transform.
type Source struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ModuleType classifies path by extension.
func ModuleType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return "javascript"
	case ".ts", ".tsx", ".mts":
		return "typescript"
	case ".css":
		return "css"
	case ".json":
		return "json"
	case ".html", ".htm":
		return "html"
	default:
		return "asset"
	}
}

// Asset is one output file.
type Asset struct {
	Name    string
	Content string
	Info    map[string]string
}

// Assets is the mutable set of outputs of a build. It is safe for
// concurrent use; emit taps run in parallel.
type Assets struct {
	mu    sync.RWMutex
	items map[string]*Asset
}

// NewAssets creates an empty asset set.
func NewAssets() *Assets {
	return &Assets{items: make(map[string]*Asset)}
}

// Set creates or replaces the content of name, keeping its info.
func (a *Assets) Set(name, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if asset, ok := a.items[name]; ok {
		asset.Content = content
		return
	}
	a.items[name] = &Asset{Name: name, Content: content, Info: make(map[string]string)}
}

// Get returns the content of name.
func (a *Assets) Get(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	asset, ok := a.items[name]
	if !ok {
		return "", false
	}
	return asset.Content, true
}

// Delete removes name and reports whether it existed.
func (a *Assets) Delete(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.items[name]
	delete(a.items, name)
	return ok
}

// Rename moves an asset. It fails when from is missing or to exists.
func (a *Assets) Rename(from, to string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	asset, ok := a.items[from]
	if !ok {
		return false
	}
	if _, exists := a.items[to]; exists {
		return false
	}
	delete(a.items, from)
	asset.Name = to
	a.items[to] = asset
	return true
}

// SetInfo records a key on an existing asset.
func (a *Assets) SetInfo(name, key, value string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	asset, ok := a.items[name]
	if !ok {
		return false
	}
	asset.Info[key] = value
	return true
}

// Info returns a copy of the info of name.
func (a *Assets) Info(name string) map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if asset, ok := a.items[name]; ok {
		return maps.Clone(asset.Info)
	}
	return nil
}

// Names returns the asset names, sorted.
func (a *Assets) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Sorted(maps.Keys(a.items))
}

// Len returns the number of assets.
func (a *Assets) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Stats summarizes a finished build.
type Stats struct {
	SessionID string            `json:"session"`
	Inputs    int               `json:"inputs"`
	Assets    []string          `json:"assets"`
	Sizes     map[string]int    `json:"sizes"`
	Hashes    map[string]string `json:"hashes"`
	Elapsed   time.Duration     `json:"-"`
	ElapsedMS int64             `json:"elapsedMs"`
}
