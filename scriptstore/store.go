// Package scriptstore loads controller scripts from a directory and tracks
// their content identity. Script names are file stems; the content hash is
// the script_id the runtime protocol caches on, so a changed file naturally
// invalidates the worker-side compile cache.
package scriptstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/protocol"
)

var (
	ErrClosed          = errors.New("scriptstore: store closed")
	ErrAlreadyWatching = errors.New("scriptstore: watch already active")
)

const scriptExt = ".js"

// Script is one loaded controller script.
type Script struct {
	// Name is the file stem; controllers are matched to scripts by it.
	Name string
	Path string
	// ID is the content hash sent as script_id on the wire.
	ID     string
	Source string
}

// Store holds the scripts of one directory. Safe for concurrent use.
type Store struct {
	dir string

	mu      sync.RWMutex
	scripts map[string]Script
	closed  bool

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open scans dir and loads every script in it. The directory must exist;
// an empty one is fine.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: open failed (%s): %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scriptstore: not a directory: %s", dir)
	}
	s := &Store{dir: dir, scripts: map[string]Script{}}
	if _, err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir reports the directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// Script returns the loaded script for name.
func (s *Store) Script(name string) (Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scripts[name]
	return sc, ok
}

// Names lists loaded script names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.scripts))
	for name := range s.scripts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Refresh rescans the directory and reports which scripts changed: new
// names, removed names, and names whose content hash moved. Unreadable
// files fail the whole pass and leave the previous set in place.
func (s *Store) Refresh() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: refresh failed (%s): %w", s.dir, err)
	}

	next := make(map[string]Script, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scriptExt) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("scriptstore: read failed (%s): %w", path, err)
		}
		source := string(data)
		name := strings.TrimSuffix(entry.Name(), scriptExt)
		next[name] = Script{
			Name:   name,
			Path:   path,
			ID:     protocol.ScriptID(source),
			Source: source,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var changed []string
	for name, sc := range next {
		if prev, ok := s.scripts[name]; !ok || prev.ID != sc.ID {
			changed = append(changed, name)
		}
	}
	for name := range s.scripts {
		if _, ok := next[name]; !ok {
			changed = append(changed, name)
		}
	}
	slices.Sort(changed)
	s.scripts = next
	return changed, nil
}

// Watch starts an fsnotify watcher over the store directory and delivers
// the names of scripts whose content changed. One watch per store; the
// channel closes when the store closes. A slow consumer drops updates
// rather than blocking the watcher.
func (s *Store) Watch() (<-chan string, error) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil, ErrAlreadyWatching
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scriptstore: watch failed: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("scriptstore: watch failed (%s): %w", s.dir, err)
	}

	updates := make(chan string, 16)
	done := make(chan struct{})
	s.watcher = watcher
	s.done = done
	go s.watchLoop(watcher, updates, done)
	return updates, nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher, updates chan<- string, done chan struct{}) {
	defer close(updates)
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, scriptExt) {
				continue
			}
			if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			changed, err := s.Refresh()
			if err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				log.Warn().Err(err).Str("dir", s.dir).Msg("script refresh failed")
				continue
			}
			for _, name := range changed {
				select {
				case updates <- name:
				default:
					log.Debug().Str("script", name).Msg("script update dropped, consumer behind")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("dir", s.dir).Msg("script watcher error")
		}
	}
}

// Close stops any watcher and marks the store unusable for refreshes.
// Loaded scripts stay readable so in-flight ticks can finish.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	s.done = nil
	return err
}
