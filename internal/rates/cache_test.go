package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/model"
)

// countingProvider counts calls that reach the wrapped provider.
type countingProvider struct {
	Provider
	calls int
}

func (c *countingProvider) PaperPricePerKg(ctx context.Context, key PaperKey) (float64, error) {
	c.calls++
	return c.Provider.PaperPricePerKg(ctx, key)
}

func (c *countingProvider) PlateUnitCost(ctx context.Context, category model.PlateCategory) (float64, error) {
	c.calls++
	return c.Provider.PlateUnitCost(ctx, category)
}

func (c *countingProvider) InkRate(ctx context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error) {
	c.calls++
	return c.Provider.InkRate(ctx, category, ink)
}

func (c *countingProvider) FinishRate(ctx context.Context, kind model.FinishKind, size string) (Rate, error) {
	c.calls++
	return c.Provider.FinishRate(ctx, kind, size)
}

func newTestCache(t *testing.T, next Provider, ttl time.Duration) *Cache {
	t.Helper()
	db, err := OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCache(next, db, ttl, nil)
}

func TestCache_ServesRepeatLookupsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{Provider: NewStaticProvider().
		SetPaper(artCard, 31).
		SetPlate(model.PlateSmall, 350).
		SetInk(model.PlateSmall, model.InkNormal, Rate{CostPerSheet: 0.15, MinimumCost: 300}).
		SetFinish(model.FinishCoating, "small", Rate{CostPerSheet: 0.3, MinimumCost: 300})}
	cache := newTestCache(t, inner, time.Minute)

	for i := 0; i < 3; i++ {
		price, err := cache.PaperPricePerKg(ctx, artCard)
		require.NoError(t, err)
		assert.Equal(t, 31.0, price)

		plate, err := cache.PlateUnitCost(ctx, model.PlateSmall)
		require.NoError(t, err)
		assert.Equal(t, 350.0, plate)

		ink, err := cache.InkRate(ctx, model.PlateSmall, model.InkNormal)
		require.NoError(t, err)
		assert.Equal(t, 300.0, ink.MinimumCost)

		coat, err := cache.FinishRate(ctx, model.FinishCoating, "small")
		require.NoError(t, err)
		assert.Equal(t, 0.3, coat.CostPerSheet)
	}
	assert.Equal(t, 4, inner.calls, "each rate resolved once")
}

func TestCache_DoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	static := NewStaticProvider()
	inner := &countingProvider{Provider: static}
	cache := newTestCache(t, inner, time.Minute)

	_, err := cache.PlateUnitCost(ctx, model.PlateLarge)
	assert.ErrorIs(t, err, ErrRateNotFound)

	static.SetPlate(model.PlateLarge, 600)
	plate, err := cache.PlateUnitCost(ctx, model.PlateLarge)
	require.NoError(t, err)
	assert.Equal(t, 600.0, plate)
	assert.Equal(t, 2, inner.calls)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	static := NewStaticProvider().SetPlate(model.PlateSmall, 350)
	inner := &countingProvider{Provider: static}
	cache := newTestCache(t, inner, time.Minute)

	_, err := cache.PlateUnitCost(ctx, model.PlateSmall)
	require.NoError(t, err)

	static.SetPlate(model.PlateSmall, 375)
	plate, _ := cache.PlateUnitCost(ctx, model.PlateSmall)
	assert.Equal(t, 350.0, plate, "stale until invalidated")

	require.NoError(t, cache.Invalidate())
	plate, err = cache.PlateUnitCost(ctx, model.PlateSmall)
	require.NoError(t, err)
	assert.Equal(t, 375.0, plate)
}

func TestCache_PaperKeyIgnoresCase(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{Provider: NewStaticProvider().SetPaper(artCard, 31)}
	cache := newTestCache(t, inner, time.Minute)

	_, err := cache.PaperPricePerKg(ctx, artCard)
	require.NoError(t, err)
	price, err := cache.PaperPricePerKg(ctx, PaperKey{Type: "ART CARD", GrammageGSM: 260, Supplier: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 31.0, price)
	assert.Equal(t, 1, inner.calls)
}

func TestNewCache_DefaultTTL(t *testing.T) {
	cache := newTestCache(t, NewStaticProvider(), 0)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)
}
