package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
)

func TestDefaultPlateCosts(t *testing.T) {
	tbl := Default()

	small, ok := tbl.PlateUnitCost(model.PlateSmall)
	require.True(t, ok)
	large, ok := tbl.PlateUnitCost(model.PlateLarge)
	require.True(t, ok)

	assert.Equal(t, 350.0, small)
	assert.Equal(t, 600.0, large)
	assert.Greater(t, large, small, "large plates cost more than small ones")

	_, ok = tbl.PlateUnitCost("jumbo")
	assert.False(t, ok)
}

func TestDefaultInkRatesCoverEveryCategory(t *testing.T) {
	tbl := Default()
	for _, plate := range []model.PlateCategory{model.PlateSmall, model.PlateLarge} {
		normal, ok := tbl.InkRate(plate, model.InkNormal)
		require.True(t, ok, "normal ink for %s", plate)
		base, ok := tbl.InkRate(plate, model.InkBase)
		require.True(t, ok, "base ink for %s", plate)

		assert.Positive(t, normal.CostPerSheet)
		assert.Positive(t, normal.MinimumCost)
		assert.Greater(t, base.CostPerSheet, normal.CostPerSheet, "flood ink uses more ink per sheet")
		assert.Greater(t, base.MinimumCost, normal.MinimumCost)
	}

	small, _ := tbl.InkRate(model.PlateSmall, model.InkNormal)
	assert.Equal(t, rates.Rate{CostPerSheet: 0.15, MinimumCost: 300}, small)
}

func TestDefaultFinishRatesCoverEverySize(t *testing.T) {
	tbl := Default()
	for _, kind := range []model.FinishKind{model.FinishCoating, model.FinishSpotUV} {
		prev := rates.Rate{}
		for _, size := range FinishSizes() {
			r, ok := tbl.FinishRate(kind, size)
			require.True(t, ok, "%s %s", kind, size)
			assert.Greater(t, r.CostPerSheet, prev.CostPerSheet, "%s %s grows with size", kind, size)
			assert.Greater(t, r.MinimumCost, prev.MinimumCost, "%s %s grows with size", kind, size)
			prev = r
		}
	}

	_, ok := tbl.FinishRate(model.FinishCoating, "A0")
	assert.False(t, ok)
}

func TestFinishRateIgnoresCase(t *testing.T) {
	tbl := Default()

	want, ok := tbl.FinishRate(model.FinishCoating, SizeMedium)
	require.True(t, ok)
	for _, size := range []string{"Medium", "MEDIUM", " medium "} {
		got, ok := tbl.FinishRate(model.FinishCoating, size)
		require.True(t, ok, size)
		assert.Equal(t, want, got, size)
	}

	uv, ok := tbl.FinishRate(model.FinishSpotUV, "Large")
	require.True(t, ok)
	assert.Equal(t, rates.Rate{CostPerSheet: 1.80, MinimumCost: 2000}, uv)
}

func TestSpotUVCostsMoreThanCoating(t *testing.T) {
	tbl := Default()
	for _, size := range FinishSizes() {
		coat, _ := tbl.FinishRate(model.FinishCoating, size)
		uv, _ := tbl.FinishRate(model.FinishSpotUV, size)
		assert.Greater(t, uv.CostPerSheet, coat.CostPerSheet, size)
	}
}
