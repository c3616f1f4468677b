package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/units"
)

func TestComputeLayout_PicksRotatedWhenItFitsMore(t *testing.T) {
	// 9x12cm ≈ 3.54x4.72in on 25x36in: portrait 7x7=49, rotated 5x10=50.
	res := ComputeLayout(25, 36, 9, 12)

	assert.Equal(t, 50, res.PiecesPerSheet)
	assert.True(t, res.Rotated)
	assert.Equal(t, 5, res.Cols)
	assert.Equal(t, 10, res.Rows)
	assert.InDelta(t, 7.0, res.WastePercent, 0.001)
}

func TestComputeLayoutWith_ForcedPortrait(t *testing.T) {
	paper := model.PaperSize{Width: 25, Height: 36}
	job := model.JobSize{Width: 9, Height: 12}

	res := ComputeLayoutWith(paper, job, model.RotationPortrait)

	assert.Equal(t, 49, res.PiecesPerSheet)
	assert.False(t, res.Rotated)
	assert.Equal(t, 7, res.Cols)
	assert.Equal(t, 7, res.Rows)
	assert.Greater(t, res.WastePercent, ComputeLayout(25, 36, 9, 12).WastePercent,
		"forced orientation must recompute its own waste")
}

func TestComputeLayoutWith_ForcedRotated(t *testing.T) {
	// On a 10x7in sheet a 2x3in piece fits better in portrait, so force rotated.
	paper := model.PaperSize{Width: 10, Height: 7}
	job := model.JobSize{Width: units.Inch(2).Centimeters(), Height: units.Inch(3).Centimeters()}

	auto := ComputeLayoutWith(paper, job, model.RotationAuto)
	forced := ComputeLayoutWith(paper, job, model.RotationRotated)

	// portrait: 5 x 2 = 10, rotated: 3 x 3 = 9
	assert.Equal(t, 10, auto.PiecesPerSheet)
	assert.False(t, auto.Rotated)
	assert.Equal(t, 9, forced.PiecesPerSheet)
	assert.True(t, forced.Rotated)
	assert.Equal(t, 3, forced.Cols)
	assert.Equal(t, 3, forced.Rows)
}

func TestComputeLayout_TieFavorsPortrait(t *testing.T) {
	res := ComputeLayout(10, 10, 2.54, 2.54)
	assert.Equal(t, 100, res.PiecesPerSheet)
	assert.False(t, res.Rotated)
	assert.Equal(t, 0.0, res.WastePercent)
}

func TestComputeLayout_ExactFitSurvivesConversionNoise(t *testing.T) {
	// 25.4cm converts to 10in only up to floating-point error.
	res := ComputeLayout(10, 20, 25.4, 25.4)
	assert.Equal(t, 2, res.PiecesPerSheet)
	assert.Equal(t, 0.0, res.WastePercent)
}

func TestComputeLayout_UndefinedDimensions(t *testing.T) {
	tests := []struct {
		name   string
		pw, ph units.Inch
		jw, jh units.Centimeter
	}{
		{"zero paper width", 0, 36, 9, 12},
		{"zero paper height", 25, 0, 9, 12},
		{"zero job width", 25, 36, 0, 12},
		{"zero job height", 25, 36, 9, 0},
		{"negative job", 25, 36, -9, 12},
		{"all zero", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeLayout(tt.pw, tt.ph, tt.jw, tt.jh)
			assert.Equal(t, model.PlacementResult{}, res)
		})
	}
}

func TestComputeLayout_JobDoesNotFit(t *testing.T) {
	res := ComputeLayout(5, 5, 20, 20)
	assert.Equal(t, 0, res.PiecesPerSheet)
	assert.False(t, res.Fits())
	assert.Equal(t, 100.0, res.WastePercent)
}

func TestComputeLayout_OversizedGridHasNoPlacement(t *testing.T) {
	big := ComputeLayout(1000, 1000, 2.54, 2.54)
	assert.Equal(t, 1_000_000, big.PiecesPerSheet)
	assert.Equal(t, 1000, big.Cols)

	for _, tt := range []struct {
		name           string
		paperW, paperH units.Inch
		jobW, jobH     units.Centimeter
	}{
		{"each axis fits, product too large", 1e5, 1e5, 2.54, 2.54},
		{"one axis beyond int range", 1e300, 10, 2.54, 2.54},
		{"tiny piece", 36, 25, 1e-12, 1e-12},
	} {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeLayout(tt.paperW, tt.paperH, tt.jobW, tt.jobH)
			assert.Equal(t, model.PlacementResult{}, res)
			assert.False(t, res.Fits())

			forced := ComputeLayoutWith(model.PaperSize{Width: tt.paperW, Height: tt.paperH},
				model.JobSize{Width: tt.jobW, Height: tt.jobH}, model.RotationRotated)
			assert.Equal(t, model.PlacementResult{}, forced)
		})
	}
}

func TestComputeLayout_Symmetry(t *testing.T) {
	papers := []model.PaperSize{{Width: 25, Height: 36}, {Width: 31, Height: 43}, {Width: 15.5, Height: 21.5}, {Width: 10, Height: 10}}
	jobs := []model.JobSize{{Width: 9, Height: 12}, {Width: 21, Height: 29.7}, {Width: 5.5, Height: 9}, {Width: 10, Height: 10}, {Width: 40, Height: 3}}

	for _, p := range papers {
		for _, j := range jobs {
			a := ComputeLayout(p.Width, p.Height, j.Width, j.Height)
			b := ComputeLayout(p.Width, p.Height, j.Height, j.Width)
			require.Equal(t, a.PiecesPerSheet, b.PiecesPerSheet, "paper %v job %v", p, j)
			if a.Rotated == b.Rotated {
				// Same flag only happens on a tie, which both resolve to portrait.
				assert.False(t, a.Rotated, "paper %v job %v", p, j)
			}
		}
	}
}

func TestComputeLayout_WasteBounds(t *testing.T) {
	for w := units.Inch(5); w <= 40; w += 3.5 {
		for jw := units.Centimeter(1); jw <= 60; jw += 7.3 {
			res := ComputeLayout(w, w*1.4, jw, jw*0.7)
			assert.GreaterOrEqual(t, res.WastePercent, 0.0)
			assert.LessOrEqual(t, res.WastePercent, 100.0)
			if res.WastePercent == 0 {
				assert.Positive(t, res.PiecesPerSheet)
			}
		}
	}
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.6, roundTo(0.6, 3))
	assert.Equal(t, 1.235, roundTo(1.2345, 3))
	assert.Equal(t, 6.99, roundTo(6.98951, 2))
}
