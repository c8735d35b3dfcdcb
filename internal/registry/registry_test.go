// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_UpsertRemoveSnapshot(t *testing.T) {
	m := NewMemory()
	events, cancel := m.Subscribe()
	defer cancel()

	m.Upsert(Camera{ID: "a", URL: "rtsp://a/1"})
	m.Upsert(Camera{ID: "b", URL: "rtsp://b/1"})
	m.Upsert(Camera{ID: "a", URL: "rtsp://a/2"})
	m.Remove("b")
	m.Remove("missing") // no-op

	want := []Camera{{ID: "a", URL: "rtsp://a/2"}}
	if diff := cmp.Diff(want, m.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Event{Kind: EventAdded, Camera: Camera{ID: "a", URL: "rtsp://a/1"}}, <-events)
	assert.Equal(t, Event{Kind: EventAdded, Camera: Camera{ID: "b", URL: "rtsp://b/1"}}, <-events)
	assert.Equal(t, Event{Kind: EventUpdated, Camera: Camera{ID: "a", URL: "rtsp://a/2"}}, <-events)
	assert.Equal(t, Event{Kind: EventRemoved, Camera: Camera{ID: "b", URL: "rtsp://b/1"}}, <-events)
}

func TestMemory_UnchangedUpsertEmitsNothing(t *testing.T) {
	m := NewMemory()
	m.Upsert(Camera{ID: "a", URL: "rtsp://a/1"})

	events, cancel := m.Subscribe()
	defer cancel()

	m.Upsert(Camera{ID: "a", URL: "rtsp://a/1"})
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_SnapshotPreservesOrder(t *testing.T) {
	m := NewMemory()
	for _, id := range []string{"c", "a", "b"} {
		m.Upsert(Camera{ID: id, URL: "rtsp://" + id})
	}
	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "c", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)
	assert.Equal(t, "b", snap[2].ID)
}

func writeCameras(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestFile_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	writeCameras(t, path, `
cameras:
  - id: front
    name: Front door
    url: rtsp://10.0.0.5:554/s1
    username: admin
  - id: yard
    url: rtsp://10.0.0.6:554/s1
`)

	f, err := NewFile(path)
	require.NoError(t, err)

	snap := f.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "front", snap[0].ID)
	assert.Equal(t, "admin", snap[0].Username)
	assert.Equal(t, "yard", snap[1].ID)
}

func TestFile_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeCameras(t, bad, "cameras:\n  - name: no id or url\n")
	_, err = NewFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id and url")
}

func TestFile_WatchPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	writeCameras(t, path, "cameras:\n  - id: a\n    url: rtsp://a/1\n")

	f, err := NewFile(path)
	require.NoError(t, err)

	events, cancel := f.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Watch(ctx)
	}()

	// Watch exposes no readiness signal; give it time to establish the
	// fsnotify watch before writing, or the event is lost.
	time.Sleep(500 * time.Millisecond)

	writeCameras(t, path, "cameras:\n  - id: b\n    url: rtsp://b/1\n")

	var got []Event
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for reload events, got %+v", got)
		}
	}

	kinds := map[EventKind]string{}
	for _, ev := range got {
		kinds[ev.Kind] = ev.Camera.ID
	}
	assert.Equal(t, "b", kinds[EventAdded])
	assert.Equal(t, "a", kinds[EventRemoved])

	stop()
	<-done
}
