// SPDX-License-Identifier: MIT

package admission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startController(t *testing.T, capacity int) (*Controller, context.Context) {
	t.Helper()
	c, err := New(capacity)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, ctx
}

func nextNotice(t *testing.T, c *Controller) Notice {
	t.Helper()
	select {
	case n := <-c.Notices():
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notice")
		return Notice{}
	}
}

func assertNoNotice(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case n := <-c.Notices():
		t.Fatalf("unexpected notice %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_RejectsNegativeCapacity(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
}

func TestRequest_GrantsUpToCapacityThenQueues(t *testing.T) {
	c, ctx := startController(t, 2)

	for i, want := range []Result{ResultGranted, ResultGranted, ResultQueued} {
		got, err := c.Request(ctx, fmt.Sprintf("cam-%d", i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, "cam-0", nextNotice(t, c).CameraID)
	assert.Equal(t, "cam-1", nextNotice(t, c).CameraID)
	assertNoNotice(t, c)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Capacity: 2, Grants: 2, Queued: 1}, stats)
}

func TestRequest_Idempotent(t *testing.T) {
	c, ctx := startController(t, 1)

	for i := 0; i < 3; i++ {
		got, err := c.Request(ctx, "granted-cam")
		require.NoError(t, err)
		assert.Equal(t, ResultGranted, got)
	}
	for i := 0; i < 3; i++ {
		got, err := c.Request(ctx, "queued-cam")
		require.NoError(t, err)
		assert.Equal(t, ResultQueued, got)
	}

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Capacity: 1, Grants: 1, Queued: 1}, stats)
}

func TestRelease_PromotesQueueHead(t *testing.T) {
	// The §8-style scenario: capacity 2, A B C appear in order; B leaves.
	c, ctx := startController(t, 2)

	resA, _ := c.Request(ctx, "A")
	resB, _ := c.Request(ctx, "B")
	resC, _ := c.Request(ctx, "C")
	assert.Equal(t, ResultGranted, resA)
	assert.Equal(t, ResultGranted, resB)
	assert.Equal(t, ResultQueued, resC)
	assert.Equal(t, "A", nextNotice(t, c).CameraID)
	assert.Equal(t, "B", nextNotice(t, c).CameraID)

	require.NoError(t, c.Release(ctx, "B"))

	n := nextNotice(t, c)
	assert.Equal(t, NoticeGranted, n.Kind)
	assert.Equal(t, "C", n.CameraID)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Capacity: 2, Grants: 2, Queued: 0}, stats)
}

func TestRelease_QueuedCameraLeavesQueue(t *testing.T) {
	c, ctx := startController(t, 1)

	_, _ = c.Request(ctx, "A")
	_, _ = c.Request(ctx, "B")
	nextNotice(t, c) // A granted

	require.NoError(t, c.Release(ctx, "B"))
	require.NoError(t, c.Release(ctx, "A"))

	// B gave up its queue slot before A released, so nothing is promoted.
	assertNoNotice(t, c)
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Capacity: 1, Grants: 0, Queued: 0}, stats)
}

func TestSetCapacity_ShrinkRevokesLIFO(t *testing.T) {
	c, ctx := startController(t, 3)

	for _, id := range []string{"A", "B", "C"} {
		res, err := c.Request(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ResultGranted, res)
		nextNotice(t, c)
	}

	require.NoError(t, c.SetCapacity(ctx, 1))

	// Most recent grants go first: C, then B.
	n1 := nextNotice(t, c)
	assert.Equal(t, NoticeRevoked, n1.Kind)
	assert.Equal(t, "C", n1.CameraID)
	n2 := nextNotice(t, c)
	assert.Equal(t, NoticeRevoked, n2.Kind)
	assert.Equal(t, "B", n2.CameraID)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Capacity: 1, Grants: 1, Queued: 2}, stats)

	// Growing again re-admits in original request order.
	require.NoError(t, c.SetCapacity(ctx, 3))
	g1 := nextNotice(t, c)
	g2 := nextNotice(t, c)
	assert.Equal(t, "B", g1.CameraID)
	assert.Equal(t, "C", g2.CameraID)
}

func TestSetCapacity_Negative(t *testing.T) {
	c, ctx := startController(t, 1)
	assert.Error(t, c.SetCapacity(ctx, -1))
}

func TestGrantBoundInvariant(t *testing.T) {
	// For all capacities c and visible sets V: |grants| <= min(c, |V|).
	for capacity := 0; capacity <= 5; capacity++ {
		for visible := 0; visible <= 8; visible++ {
			c, ctx := startController(t, capacity)
			for i := 0; i < visible; i++ {
				_, err := c.Request(ctx, fmt.Sprintf("cam-%d", i))
				require.NoError(t, err)
			}
			stats, err := c.Stats(ctx)
			require.NoError(t, err)

			want := capacity
			if visible < want {
				want = visible
			}
			assert.Equal(t, want, stats.Grants, "capacity=%d visible=%d", capacity, visible)
			assert.Equal(t, visible-want, stats.Queued, "capacity=%d visible=%d", capacity, visible)
		}
	}
}
