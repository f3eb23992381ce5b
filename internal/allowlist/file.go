package allowlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/thealah/rest-windows-service-health-facade/internal/logging"
)

var log = logging.L("allowlist")

// LoadFile reads a YAML allow-list:
//
//	services:
//	  - MySQL80
//	  - "SQL*"
//	websites:
//	  - Default Web Site
func LoadFile(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("allowlist: read %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("allowlist: parse %s: %w", path, err)
	}
	return Compile(r)
}

// Watcher serves the allow-list loaded from a file and reloads it whenever
// the file changes. A reload that fails, or finds the file empty, keeps the
// previous list; clear the list with "services: []" instead.
type Watcher struct {
	path    string
	current atomic.Pointer[List]
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// Watch loads path and keeps it fresh until ctx is cancelled. The parent
// directory is watched so editors that replace the file are noticed.
func Watch(ctx context.Context, path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	list, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("allowlist: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("allowlist: watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{path: abs, fsw: fsw, done: make(chan struct{})}
	w.current.Store(list)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) ServiceAllowed(name string) bool { return w.current.Load().ServiceAllowed(name) }

func (w *Watcher) WebsiteAllowed(name string) bool { return w.current.Load().WebsiteAllowed(name) }

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("allow-list watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	// A truncate-then-write save briefly leaves an empty file behind.
	if info, err := os.Stat(w.path); err == nil && info.Size() == 0 {
		log.Debug("allow-list file is empty, waiting for content", "path", w.path)
		return
	}
	list, err := LoadFile(w.path)
	if err != nil {
		log.Warn("allow-list reload failed, keeping previous list", "path", w.path, "error", err)
		return
	}
	w.current.Store(list)
	services, websites := list.Len()
	log.Info("allow-list reloaded", "path", w.path, "services", services, "websites", websites)
}
