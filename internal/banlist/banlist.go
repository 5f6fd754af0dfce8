// Package banlist maintains the set of banned client IP addresses, loaded
// from a text file (one address per line, # starts a comment). The file is
// re-read on filesystem write events and on a periodic ticker, so bans take
// effect without a restart.
package banlist

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/weblogd/weblogd/internal/logger"
)

type List struct {
	path  string
	mu    sync.RWMutex
	addrs map[string]struct{}
}

// New creates a ban list backed by the file at path and performs the
// initial load. A missing file is not an error, it just means nobody is
// banned yet.
func New(path string) *List {
	l := &List{
		path:  path,
		addrs: make(map[string]struct{}),
	}
	if err := l.Reload(); err != nil {
		logger.Log.Warn("initial ban list load failed",
			"component", "banlist",
			"path", path,
			"error", err)
	}
	return l
}

// IsBanned reports whether addr is currently banned.
func (l *List) IsBanned(addr string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, banned := l.addrs[addr]
	return banned
}

// Len returns the number of banned addresses.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addrs)
}

// Reload re-reads the backing file and atomically replaces the in-memory
// set. On read failure the previous set is kept.
func (l *List) Reload() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.mu.Lock()
			l.addrs = make(map[string]struct{})
			l.mu.Unlock()
			return nil
		}
		return err
	}
	defer f.Close()

	newAddrs := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		newAddrs[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.addrs = newAddrs
	l.mu.Unlock()

	logger.Log.Info("ban list reloaded",
		"component", "banlist",
		"entries", len(newAddrs))
	return nil
}

// StartBackgroundUpdate watches the backing file for writes and also
// refreshes on a ticker in case watch events are missed (editors that
// replace the file, network filesystems). Stops when ctx is cancelled.
func (l *List) StartBackgroundUpdate(ctx context.Context, interval time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Error("failed to create ban list watcher, falling back to ticker only",
			"component", "banlist",
			"error", err)
		watcher = nil
	} else {
		// Watch the directory: editors typically rename over the file,
		// which would invalidate a watch on the file itself.
		if err := watcher.Add(filepath.Dir(l.path)); err != nil {
			logger.Log.Error("failed to watch ban list directory",
				"component", "banlist",
				"error", err)
			watcher.Close()
			watcher = nil
		}
	}

	ticker := time.NewTicker(interval)
	logger.Log.Info("started ban list background updates",
		"component", "banlist",
		"path", l.path,
		"interval", interval)

	go func() {
		defer ticker.Stop()
		if watcher != nil {
			defer watcher.Close()
		}

		var events chan fsnotify.Event
		var watchErrs chan error
		if watcher != nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		}

		for {
			select {
			case ev := <-events:
				if ev.Name != l.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.Reload(); err != nil {
					logger.Log.Error("ban list reload failed",
						"component", "banlist",
						"error", err)
				}
			case err := <-watchErrs:
				logger.Log.Error("ban list watcher error",
					"component", "banlist",
					"error", err)
			case <-ticker.C:
				if err := l.Reload(); err != nil {
					logger.Log.Error("ban list reload failed",
						"component", "banlist",
						"error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("ban list shutting down gracefully",
					"component", "banlist")
				return
			}
		}
	}()
}
