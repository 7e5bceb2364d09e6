// Package rules implements the declarative YAML rule engine: condition
// matching over recent events and graph structure, returning ordered
// remediation plans.
package rules

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/logger"
)

// Engine holds the currently loaded rule set, sorted by descending
// priority, and optionally hot-reloads it when the backing directory
// changes on disk.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	dir   string
}

// NewEngine creates an engine with no rules loaded; call LoadDir to
// populate it.
func NewEngine() *Engine {
	return &Engine{}
}

// LoadDir loads every *.yaml/*.yml file in dir, replacing the current rule
// set, sorted in descending priority order. Files are read in directory
// order; the final sort makes load order irrelevant to match order.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read rules directory %s", dir)
	}

	var loaded []Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read rule file %s", path)
		}

		var r Rule
		if err := yaml.Unmarshal(b, &r); err != nil {
			logger.Warnw("skipping malformed rule file", logger.FieldFile, path, logger.FieldError, err.Error())
			continue
		}
		loaded = append(loaded, r)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Priority > loaded[j].Priority
	})

	e.mu.Lock()
	e.rules = loaded
	e.dir = dir
	e.mu.Unlock()

	logger.Infow("rules loaded", logger.FieldCount, len(loaded), logger.FieldPath, dir)
	return nil
}

// Watch starts an fsnotify watch on the engine's rule directory, reloading
// on any write/create/remove/rename until ctx is cancelled. LoadDir must
// have been called at least once first.
func (e *Engine) Watch(ctx context.Context) error {
	e.mu.RLock()
	dir := e.dir
	e.mu.RUnlock()

	if dir == "" {
		return errors.New("rules engine: Watch called before LoadDir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create rules watcher")
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watch rules directory %s", dir)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := e.LoadDir(dir); err != nil {
					logger.Warnw("rule hot-reload failed", logger.FieldError, err.Error(), logger.FieldPath, dir)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("rules watcher error", logger.FieldError, werr.Error())
			}
		}
	}()

	return nil
}

// MatchFirst returns the highest-priority rule whose conditions all match,
// or false if none do.
func (e *Engine) MatchFirst(events []event.Event, g *graph.Graph) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.Matches(events, g) {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchAll returns every matching rule, already in descending priority
// order.
func (e *Engine) MatchAll(events []event.Event, g *graph.Graph) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Rule
	for _, r := range e.rules {
		if r.Matches(events, g) {
			out = append(out, r)
		}
	}
	return out
}

// Rules returns a snapshot of the currently loaded rule set.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}
