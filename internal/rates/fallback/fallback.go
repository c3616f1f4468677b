// Package fallback holds the built-in rate table used when a live rate
// cannot be resolved. Paper has no fallback: a paper price is too dependent
// on stock and supplier for a default to mean anything.
//
// Default rates (currency units):
//
//	plate        small 350/plate, large 600/plate
//	ink small    normal 0.15/sheet min 300, base 0.25/sheet min 500
//	ink large    normal 0.25/sheet min 500, base 0.40/sheet min 800
//	coating      small 0.30 min 300, medium 0.50 min 500, large 0.80 min 800
//	spot UV      small 0.80 min 1000, medium 1.20 min 1500, large 1.80 min 2000
package fallback

import (
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
)

// Finishing sizes known to the default table.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

type inkKey struct {
	Plate model.PlateCategory
	Ink   model.InkCategory
}

type finishKey struct {
	Kind model.FinishKind
	Size string
}

// Table is a read-only set of default rates.
type Table struct {
	plates map[model.PlateCategory]float64
	inks   map[inkKey]rates.Rate
	finish map[finishKey]rates.Rate
}

// Default returns the built-in table.
func Default() Table {
	return Table{
		plates: map[model.PlateCategory]float64{
			model.PlateSmall: 350,
			model.PlateLarge: 600,
		},
		inks: map[inkKey]rates.Rate{
			{model.PlateSmall, model.InkNormal}: {CostPerSheet: 0.15, MinimumCost: 300},
			{model.PlateSmall, model.InkBase}:   {CostPerSheet: 0.25, MinimumCost: 500},
			{model.PlateLarge, model.InkNormal}: {CostPerSheet: 0.25, MinimumCost: 500},
			{model.PlateLarge, model.InkBase}:   {CostPerSheet: 0.40, MinimumCost: 800},
		},
		finish: map[finishKey]rates.Rate{
			{model.FinishCoating, SizeSmall}:  {CostPerSheet: 0.30, MinimumCost: 300},
			{model.FinishCoating, SizeMedium}: {CostPerSheet: 0.50, MinimumCost: 500},
			{model.FinishCoating, SizeLarge}:  {CostPerSheet: 0.80, MinimumCost: 800},
			{model.FinishSpotUV, SizeSmall}:   {CostPerSheet: 0.80, MinimumCost: 1000},
			{model.FinishSpotUV, SizeMedium}:  {CostPerSheet: 1.20, MinimumCost: 1500},
			{model.FinishSpotUV, SizeLarge}:   {CostPerSheet: 1.80, MinimumCost: 2000},
		},
	}
}

// PlateUnitCost returns the default plate cost for a category.
func (t Table) PlateUnitCost(category model.PlateCategory) (float64, bool) {
	v, ok := t.plates[category]
	return v, ok
}

// InkRate returns the default ink rate for a plate and ink category.
func (t Table) InkRate(category model.PlateCategory, ink model.InkCategory) (rates.Rate, bool) {
	v, ok := t.inks[inkKey{category, ink}]
	return v, ok
}

// FinishRate returns the default coating or spot UV rate for a finishing
// size. The size is matched ignoring case.
func (t Table) FinishRate(kind model.FinishKind, size string) (rates.Rate, bool) {
	v, ok := t.finish[finishKey{kind, rates.NormalizeKey(size)}]
	return v, ok
}

// FinishSizes lists the finishing sizes the table knows, smallest first.
func FinishSizes() []string {
	return []string{SizeSmall, SizeMedium, SizeLarge}
}
