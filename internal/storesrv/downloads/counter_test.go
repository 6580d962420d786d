package downloads

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/common/middleware"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

type fakeCatalog struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
	fail   bool
}

func (f *fakeCatalog) IncrementDownloadCount(_ context.Context, id uuid.UUID) apperrors.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return dberror.ErrDatabase.Msg("boom")
	}
	if f.counts == nil {
		f.counts = map[uuid.UUID]int{}
	}
	f.counts[id]++
	return nil
}

func (f *fakeCatalog) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

func newCounter(t *testing.T, cat *fakeCatalog, maxExt, maxClients int) *Counter {
	t.Helper()
	c, err := NewCounter(cat, maxExt, maxClients, nil)
	require.NoError(t, err)
	return c
}

func TestSameClientCountsOnce(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 10)
	ext := &models.Extension{ID: uuid.New()}
	ctx := context.Background()

	counted, err := c.Record(ctx, ext, "alice/clip", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, counted)
	for i := 0; i < 5; i++ {
		counted, err = c.Record(ctx, ext, "alice/clip", "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, counted)
	}
	assert.Equal(t, 1, cat.count(ext.ID))
}

func TestDistinctClientsEachCount(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 100)
	ext := &models.Extension{ID: uuid.New()}
	for i := 0; i < 7; i++ {
		_, err := c.Record(context.Background(), ext, "alice/clip", fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 7, cat.count(ext.ID))
}

func TestClientsAreTrackedPerExtension(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 10)
	a := &models.Extension{ID: uuid.New()}
	b := &models.Extension{ID: uuid.New()}
	for _, ext := range []*models.Extension{a, b} {
		counted, err := c.Record(context.Background(), ext, ext.ID.String(), "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, counted)
	}
	assert.Equal(t, 2, c.TrackedExtensions())
}

func TestConcurrentDownloadsCountOnce(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 10)
	ext := &models.Extension{ID: uuid.New()}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Record(context.Background(), ext, "alice/clip", "1.2.3.4")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cat.count(ext.ID))
}

func TestFailedIncrementForgetsClient(t *testing.T) {
	cat := &fakeCatalog{fail: true}
	c := newCounter(t, cat, 10, 10)
	ext := &models.Extension{ID: uuid.New()}

	counted, err := c.Record(context.Background(), ext, "alice/clip", "1.2.3.4")
	assert.ErrorIs(t, err, dberror.ErrDatabase)
	assert.False(t, counted)

	cat.fail = false
	counted, err = c.Record(context.Background(), ext, "alice/clip", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, 1, cat.count(ext.ID))
}

func TestEvictedClientCountsAgain(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 2)
	ext := &models.Extension{ID: uuid.New()}
	for _, ip := range []string{"a", "b", "c", "a"} {
		_, err := c.Record(context.Background(), ext, "alice/clip", ip)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, cat.count(ext.ID), "a was evicted by c and counts again")
}

func TestUnknownClientsShareABucket(t *testing.T) {
	cat := &fakeCatalog{}
	c := newCounter(t, cat, 10, 10)
	ext := &models.Extension{ID: uuid.New()}
	for _, id := range []string{"", middleware.UnknownClient, ""} {
		_, err := c.Record(context.Background(), ext, "alice/clip", id)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cat.count(ext.ID))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "alice/clip", Key("ALICE", "clip"))
}
