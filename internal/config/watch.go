package config

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "hllstatus/pkg/logx"
)

type ChangeKind int

const (
	ChangeUpdated ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "updated"
}

// Change is one accepted edit to the config directory. Server is nil for
// removals.
type Change struct {
	ID     string
	Kind   ChangeKind
	Server *Server
}

// Watcher reports validated changes to server files in a directory.
// Invalid edits are logged and the previous config stays in effect.
type Watcher struct {
	dir      string
	log      logx.Logger
	debounce time.Duration

	mu     sync.Mutex
	hashes map[string]uint64 // by server id
	timers map[string]*time.Timer

	out chan Change
}

// NewWatcher seeds the watcher with the configs already running so that
// rewrites without content changes are ignored.
func NewWatcher(dir string, running []*Server, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watcher{
		dir:      dir,
		log:      log,
		debounce: 250 * time.Millisecond,
		hashes:   map[string]uint64{},
		timers:   map[string]*time.Timer{},
		out:      make(chan Change, 16),
	}
	for _, s := range running {
		w.hashes[s.ID] = hashServer(s)
	}
	return w
}

func (w *Watcher) Changes() <-chan Change { return w.out }

// schedule debounces editor write bursts per file.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t := w.timers[path]; t != nil {
		t.Stop()
	}
	w.log.Debug("config change detected; scheduling reload", logx.String("path", path))
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.reload(ctx, path) })
}

func (w *Watcher) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	id := fileStem(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		w.mu.Lock()
		_, known := w.hashes[id]
		delete(w.hashes, id)
		w.mu.Unlock()
		if known {
			w.emit(ctx, Change{ID: id, Kind: ChangeRemoved})
		}
		return
	}

	srv, err := Parse(path)
	if err != nil {
		w.log.Warn("config rejected", logx.String("server", id), logx.Err(err))
		return
	}

	h := hashServer(srv)
	w.mu.Lock()
	unchanged := h != 0 && h == w.hashes[id]
	if !unchanged {
		w.hashes[id] = h
	}
	w.mu.Unlock()
	if unchanged {
		w.log.Debug("config unchanged; skipping reload", logx.String("server", id))
		return
	}
	w.emit(ctx, Change{ID: id, Kind: ChangeUpdated, Server: srv})
}

func (w *Watcher) emit(ctx context.Context, c Change) {
	select {
	case w.out <- c:
		w.log.Info("config change accepted", logx.String("server", c.ID), logx.String("kind", c.Kind.String()))
	case <-ctx.Done():
	}
}

// Watch runs until ctx ends. Every (re)start rescans the directory. When
// fsnotify breaks (closed channels or a failing watcher) it is recreated
// with a jittered exponential backoff.
func (w *Watcher) Watch(ctx context.Context) error {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		return wait
	}
	pause := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	defer w.stopTimers()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", w.dir))
			if !pause(nextWait()) {
				return nil
			}
			continue
		}
		if err := fw.Add(w.dir); err != nil {
			_ = fw.Close()
			w.log.Warn("config watch add failed", logx.Err(err), logx.String("dir", w.dir))
			if !pause(nextWait()) {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		w.log.Debug("config watcher started", logx.String("dir", w.dir))
		// Catch edits made before the watch was in place.
		w.rescan(ctx)

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if !IsServerFile(ev.Name) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					w.schedule(ctx, filepath.Join(w.dir, filepath.Base(ev.Name)))
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					w.log.Warn("config watch overflow; rescanning", logx.String("dir", w.dir))
					w.rescan(ctx)
					continue
				}
				w.log.Warn("config watch error", logx.Err(err), logx.String("dir", w.dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = fw.Close()
		wait := nextWait()
		w.log.Warn("config watcher stopped; restarting", logx.String("dir", w.dir), logx.Duration("backoff", wait))
		if !pause(wait) {
			return nil
		}
	}
}

// rescan schedules a reload of every server file and of every known server,
// so removals missed during an overflow are noticed too.
func (w *Watcher) rescan(ctx context.Context) {
	paths := map[string]struct{}{}
	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && IsServerFile(e.Name()) {
				paths[filepath.Join(w.dir, e.Name())] = struct{}{}
			}
		}
	}
	w.mu.Lock()
	known := make([]string, 0, len(w.hashes))
	for id := range w.hashes {
		known = append(known, id)
	}
	w.mu.Unlock()
	for _, id := range known {
		found := false
		for p := range paths {
			if fileStem(p) == id {
				found = true
				break
			}
		}
		if !found {
			paths[filepath.Join(w.dir, id+".toml")] = struct{}{}
		}
	}
	for p := range paths {
		w.schedule(ctx, p)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
}
