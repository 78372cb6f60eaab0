package config

import (
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Guardrail is a named rule consulted by the agent's self-evaluation tool
// (evaluate_recommendation). It carries either a threshold or a free-form
// configuration object, plus the action to take on violation.
type Guardrail struct {
	Name             string         `yaml:"name"`
	RuleCategory     string         `yaml:"rule_category"`
	BlockedActions   []string       `yaml:"blocked_action_types,omitempty"`
	MinConfidence    *float64       `yaml:"min_confidence,omitempty"`
	ViolationAction  string         `yaml:"violation_action"` // warn | block | alert
	ExtraConfig      map[string]any `yaml:"config,omitempty"`
}

// GuardrailSet is the hot-reloadable collection of active guardrails.
// Loaded from a YAML file and watched with fsnotify so operators can tune
// thresholds (e.g. min_confidence) without a redeploy — the one config
// facet the spec's "global configuration" design note allows to change
// between runs.
type GuardrailSet struct {
	mu         sync.RWMutex
	guardrails []Guardrail
	watcher    *fsnotify.Watcher
	path       string

	// onReload, if set, is invoked with the freshly parsed set after every
	// successful load (initial and file-change-triggered). Wired by the
	// caller that owns the persistence store (internal/store has no reason
	// to import config, nor config to import store) to reconcile the
	// guardrails table against the file, which remains the source of
	// truth.
	onReload func([]Guardrail)
}

// OnReload registers a callback fired after every successful guardrail
// reload, file-based or initial. If a set is already loaded when the
// callback is registered, the callback is invoked once with it right away.
// Only one callback is kept; a later call replaces an earlier one.
func (gs *GuardrailSet) OnReload(fn func([]Guardrail)) {
	gs.mu.Lock()
	gs.onReload = fn
	current := gs.guardrails
	gs.mu.Unlock()

	if fn != nil && current != nil {
		fn(current)
	}
}

// LoadGuardrails reads the guardrail YAML file at path and starts watching
// it for changes. If the file does not exist, an empty set is returned
// (guardrails are optional; the hard-coded confidence<0.3 block in the
// agent package always applies regardless).
func LoadGuardrails(path string) (*GuardrailSet, error) {
	gs := &GuardrailSet{path: path}
	if err := gs.reload(); err != nil {
		slog.Warn("guardrails: initial load failed, starting with empty set", "path", path, "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return gs, nil // watching is best-effort; guardrails still usable without it
	}
	gs.watcher = watcher
	if err := watcher.Add(path); err != nil {
		slog.Warn("guardrails: failed to watch config file", "path", path, "error", err)
		return gs, nil
	}

	go gs.watch()
	return gs, nil
}

func (gs *GuardrailSet) watch() {
	for {
		select {
		case event, ok := <-gs.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := gs.reload(); err != nil {
					slog.Warn("guardrails: reload failed", "error", err)
				} else {
					slog.Info("guardrails: reloaded", "path", gs.path)
				}
			}
		case err, ok := <-gs.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("guardrails: watcher error", "error", err)
		}
	}
}

func (gs *GuardrailSet) reload() error {
	data, err := os.ReadFile(gs.path)
	if err != nil {
		return err
	}
	var parsed struct {
		Guardrails []Guardrail `yaml:"guardrails"`
	}
	if err := yaml.Unmarshal(ExpandEnv(data), &parsed); err != nil {
		return err
	}
	gs.mu.Lock()
	gs.guardrails = parsed.Guardrails
	cb := gs.onReload
	gs.mu.Unlock()

	if cb != nil {
		cb(parsed.Guardrails)
	}
	return nil
}

// All returns a snapshot of the currently active guardrails.
func (gs *GuardrailSet) All() []Guardrail {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	out := make([]Guardrail, len(gs.guardrails))
	copy(out, gs.guardrails)
	return out
}

// Close stops the file watcher.
func (gs *GuardrailSet) Close() error {
	if gs.watcher != nil {
		return gs.watcher.Close()
	}
	return nil
}
