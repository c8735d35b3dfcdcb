// SPDX-License-Identifier: MIT

// Package secrets looks up camera credentials. The engine only ever reads;
// secrets are resolved per connection attempt and never cached.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store resolves the secret for a camera. ok is false when no secret is
// stored, which is legal: anonymous cameras exist.
type Store interface {
	Get(ctx context.Context, cameraID string) (secret string, ok bool, err error)
}

// Memory is a map-backed store for tests and embedded setups.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

// Set stores a secret for a camera.
func (m *Memory) Set(cameraID, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[cameraID] = secret
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, cameraID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.secrets[cameraID]
	return s, ok, nil
}

// Dir reads one secret file per camera ID from a directory, the layout used
// by vault agents and container secret mounts. File contents are trimmed of
// trailing whitespace.
type Dir struct {
	root string
}

// NewDir creates a directory-backed store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Get implements Store. A missing file means no secret is stored.
func (d *Dir) Get(_ context.Context, cameraID string) (string, bool, error) {
	if cameraID == "" || cameraID != filepath.Base(cameraID) || strings.HasPrefix(cameraID, ".") {
		return "", false, fmt.Errorf("secrets: invalid camera ID %q", cameraID)
	}
	data, err := os.ReadFile(filepath.Join(d.root, cameraID)) // #nosec G304 -- base-name checked above
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("secrets: read %s: %w", cameraID, err)
	}
	return strings.TrimRight(string(data), "\r\n"), true, nil
}
