package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// loadRulesetFile reads a ruleset JSON document from disk.
func loadRulesetFile(path string) (Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read ruleset file %q: %w", path, err)
	}
	var rs Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return Ruleset{}, fmt.Errorf("parse ruleset file %q: %w", path, err)
	}
	rs.normalize()
	return rs, nil
}

// watchBootstrap reloads the bootstrap ruleset whenever the file changes on
// disk. The parent directory is watched so editors that replace the file
// (write to temp, rename over) are still observed. A file that fails to
// parse keeps the previous ruleset in place.
func (e *Engine) watchBootstrap(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.log.Warn("bootstrap watcher unavailable", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		e.log.Warn("bootstrap watch failed", "path", path, "error", err)
		return
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			rs, err := loadRulesetFile(path)
			if err != nil {
				e.log.Warn("bootstrap reload failed", "path", path, "error", err)
				continue
			}
			e.setRuleset(rs)
			e.log.Info("bootstrap ruleset reloaded", "path", path, "version", rs.Version)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.log.Warn("bootstrap watcher error", "error", err)
		}
	}
}
