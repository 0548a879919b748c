package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyermatch/internal/model"
)

type fakeSource struct {
	fullCalls    int
	batchedCalls int
	lightCalls   int

	batchedConcurrency int

	fullBuyers    []model.Buyer
	fullErr       error
	batchedBuyers []model.Buyer
	batchedErr    error
	lightBuyers   []model.Buyer
	lightErr      error
}

func (f *fakeSource) LoadActiveBuyersWithHistory(_ context.Context) ([]model.Buyer, error) {
	f.fullCalls++
	return f.fullBuyers, f.fullErr
}

func (f *fakeSource) LoadActiveBuyersWithHistoryBatched(_ context.Context, concurrency int) ([]model.Buyer, error) {
	f.batchedCalls++
	f.batchedConcurrency = concurrency
	return f.batchedBuyers, f.batchedErr
}

func (f *fakeSource) LoadActiveBuyers(_ context.Context) ([]model.Buyer, error) {
	f.lightCalls++
	return f.lightBuyers, f.lightErr
}

func buyersNamed(names ...string) []model.Buyer {
	out := make([]model.Buyer, 0, len(names))
	for _, n := range names {
		out = append(out, model.Buyer{CompanyName: n, Purchases: []model.Purchase{{Address: "1 Main St"}}})
	}
	return out
}

func newTestCache(src Source, at time.Time) *Cache {
	c := New(src, Config{})
	c.WithNow(func() time.Time { return at })
	return c
}

func TestGetLoadsOnFirstCall(t *testing.T) {
	src := &fakeSource{fullBuyers: buyersNamed("Acme Holdings")}
	c := newTestCache(src, time.Now())

	buyers, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, buyers, 1)
	assert.Equal(t, 1, src.fullCalls)
}

func TestGetServesFreshSnapshotWithoutReload(t *testing.T) {
	src := &fakeSource{fullBuyers: buyersNamed("Acme Holdings")}
	c := newTestCache(src, time.Now())

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	_, err = c.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, src.fullCalls, "fresh snapshot must not hit storage")
}

func TestGetTTLBoundary(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	src := &fakeSource{fullBuyers: buyersNamed("Acme Holdings")}
	c := New(src, Config{}).WithNow(func() time.Time { return now })

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	now = t0.Add(11*time.Hour + 59*time.Minute)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.fullCalls, "snapshot under TTL is still fresh")

	now = t0.Add(12*time.Hour + 1*time.Minute)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.fullCalls, "expired snapshot triggers reload")
}

func TestGetServesStaleOnReloadFailure(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	src := &fakeSource{fullBuyers: buyersNamed("Acme Holdings")}
	c := New(src, Config{}).WithNow(func() time.Time { return now })

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	now = t0.Add(13 * time.Hour)
	src.fullErr = errors.New("connection refused by primary")
	buyers, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, buyers, 1, "stale snapshot is better than nothing")
	assert.Equal(t, 0, src.batchedCalls, "stale snapshot short-circuits degraded reloads")
}

func TestGetFallsBackToBatchedReload(t *testing.T) {
	src := &fakeSource{
		fullErr:       errors.New("statement timeout"),
		batchedBuyers: buyersNamed("Acme Holdings", "Blue Door LLC"),
	}
	c := newTestCache(src, time.Now())

	buyers, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, buyers, 2)
	assert.Equal(t, DefaultDegradedConcurrency, src.batchedConcurrency)
	assert.Equal(t, 0, src.lightCalls)
}

func TestGetFallsBackToNoHistoryReload(t *testing.T) {
	src := &fakeSource{
		fullErr:     errors.New("statement timeout"),
		batchedErr:  errors.New("statement timeout"),
		lightBuyers: buyersNamed("Acme Holdings"),
	}
	c := newTestCache(src, time.Now())

	buyers, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	assert.Empty(t, buyers[0].Purchases, "no-history fallback serves buyers with empty history")
}

func TestGetServesEmptyWhenEverythingFails(t *testing.T) {
	src := &fakeSource{
		fullErr:    errors.New("primary down"),
		batchedErr: errors.New("batched down"),
		lightErr:   errors.New("light down"),
	}
	c := newTestCache(src, time.Now())

	buyers, err := c.Get(context.Background())
	require.NoError(t, err, "total storage failure must not surface as an error")
	assert.Empty(t, buyers)
}

func TestGetEmptySnapshotNeverConsideredFresh(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(src, time.Now())

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	_, err = c.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, src.fullCalls, "an empty snapshot is retried on every Get")
}

func TestReplaceResetsFreshness(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	src := &fakeSource{fullBuyers: buyersNamed("Acme Holdings")}
	c := New(src, Config{}).WithNow(func() time.Time { return now })

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	now = t0.Add(11 * time.Hour)
	c.Replace(buyersNamed("Blue Door LLC", "Cedar Grove Capital"))

	now = t0.Add(13 * time.Hour)
	buyers, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, buyers, 2, "Replace restarts the TTL clock")
	assert.Equal(t, 1, src.fullCalls)
}

func TestRefreshSurfacesLoaderError(t *testing.T) {
	src := &fakeSource{fullErr: errors.New("primary down")}
	c := newTestCache(src, time.Now())

	_, err := c.Refresh(context.Background())
	assert.Error(t, err)

	src.fullErr = nil
	src.fullBuyers = buyersNamed("Acme Holdings")
	n, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetHonorsContextCancellation(t *testing.T) {
	src := &fakeSource{fullErr: errors.New("primary down")}
	c := newTestCache(src, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
