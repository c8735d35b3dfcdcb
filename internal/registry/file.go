// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mhartig/gridcam/internal/log"
)

// reloadDebounce coalesces bursts of fsnotify events from editors and
// atomic-replace writers into a single reload.
const reloadDebounce = 200 * time.Millisecond

type cameraFile struct {
	Cameras []Camera `yaml:"cameras"`
}

// File is a YAML-backed registry that reloads when the file changes. It
// embeds the in-memory registry for snapshots and subscriptions; reloads
// diff into add/update/remove events.
type File struct {
	*Memory
	path   string
	logger zerolog.Logger
}

// NewFile creates a file registry and performs the initial load.
func NewFile(path string) (*File, error) {
	f := &File{
		Memory: NewMemory(),
		path:   path,
		logger: log.WithComponent("registry"),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Watch blocks until ctx is done, reloading the file on changes. Reload
// failures keep the previous snapshot and are logged, never fatal.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Watch the directory: editors and atomic writers replace the file,
	// which would invalidate a watch on the file itself.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				fire = debounce.C
			} else {
				debounce.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn().Err(err).Msg("registry watcher error")
		case <-fire:
			debounce = nil
			fire = nil
			if err := f.reload(); err != nil {
				f.logger.Error().Err(err).Str("path", f.path).Msg("registry reload failed, keeping previous snapshot")
			}
		}
	}
}

func (f *File) reload() error {
	data, err := os.ReadFile(f.path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	var parsed cameraFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse %s: %w", f.path, err)
	}
	for _, cam := range parsed.Cameras {
		if cam.ID == "" || cam.URL == "" {
			return fmt.Errorf("parse %s: camera entries need id and url", f.path)
		}
	}

	seen := make(map[string]struct{}, len(parsed.Cameras))
	for _, cam := range parsed.Cameras {
		seen[cam.ID] = struct{}{}
		f.Upsert(cam)
	}
	for _, cam := range f.Snapshot() {
		if _, ok := seen[cam.ID]; !ok {
			f.Remove(cam.ID)
		}
	}

	f.logger.Info().
		Int("cameras", len(parsed.Cameras)).
		Str("path", f.path).
		Msg("registry loaded")
	return nil
}
