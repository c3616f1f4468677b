// Package costing turns a placement and paper usage plan into itemized costs
// and per-quantity quotes.
//
// Formulas are a closed set of named variants chosen by configuration. They
// are plain functions over explicit inputs: no formula text is ever evaluated.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
	"github.com/piwi3910/PressQuote/internal/units"
)

// squareInchToSquareMeter converts sheet area for the metric-weight variant.
const squareInchToSquareMeter = 0.00064516

// PaperInput holds everything the paper formulas read.
type PaperInput struct {
	Reams            float64
	SheetsPerReam    int
	Size             model.PaperSize // Master sheet
	GrammageGSM      float64
	PricePerKg       float64
	ConversionFactor float64
}

// PaperCost prices the purchased reams of paper.
//
// ream-weight:   reams × W × H × gsm / factor × price/kg
// metric-weight: reams × sheetsPerReam × (W × H in m²) × gsm / 1000 × price/kg
//
// With 500-sheet reams the two agree to within 0.001% at the default factor of 3100.
func PaperCost(variant model.PaperFormula, in PaperInput) float64 {
	if in.Reams <= 0 || !in.Size.Defined() || in.GrammageGSM <= 0 || in.PricePerKg <= 0 {
		return 0
	}
	switch variant {
	case model.PaperFormulaMetricWeight:
		sheets := in.Reams * float64(in.SheetsPerReam)
		return sheets * in.Size.Area() * squareInchToSquareMeter * in.GrammageGSM / 1000 * in.PricePerKg
	default:
		if in.ConversionFactor <= 0 {
			return 0
		}
		return in.Reams * in.Size.Area() * in.GrammageGSM / in.ConversionFactor * in.PricePerKg
	}
}

// PaperWeightKg is the weight of the purchased paper, shared by both variants.
func PaperWeightKg(variant model.PaperFormula, in PaperInput) float64 {
	in.PricePerKg = 1
	return PaperCost(variant, in)
}

// PlateCost is one plate per color pass.
func PlateCost(unitCost float64, colors int) float64 {
	if unitCost <= 0 || colors <= 0 {
		return 0
	}
	return unitCost * float64(colors)
}

// PlateCategoryFor picks the large plate category when either press sheet
// dimension exceeds threshold.
func PlateCategoryFor(size model.PaperSize, threshold units.Inch) model.PlateCategory {
	if size.Width > threshold || size.Height > threshold {
		return model.PlateLarge
	}
	return model.PlateSmall
}

// InkCost sums the normal and base ink categories. A category with no color
// passes costs nothing.
func InkCost(variant model.InkFormula, normal, base rates.Rate, totalSheets, normalColors, baseColors int) float64 {
	var total float64
	if normalColors > 0 {
		total += inkCategoryCost(variant, normal, totalSheets)
	}
	if baseColors > 0 {
		total += inkCategoryCost(variant, base, totalSheets)
	}
	return total
}

func inkCategoryCost(variant model.InkFormula, r rates.Rate, totalSheets int) float64 {
	run := runCost(r, totalSheets)
	minimum := max(r.MinimumCost, 0)
	switch variant {
	case model.InkFormulaSetupPlusRun:
		return minimum + run
	default:
		return max(run, minimum)
	}
}

// FinishCost prices coating or spot UV with a per-job minimum.
func FinishCost(enabled bool, r rates.Rate, totalSheets int) float64 {
	if !enabled {
		return 0
	}
	return max(runCost(r, totalSheets), max(r.MinimumCost, 0))
}

func runCost(r rates.Rate, totalSheets int) float64 {
	if totalSheets <= 0 || r.CostPerSheet <= 0 {
		return 0
	}
	return float64(totalSheets) * r.CostPerSheet
}

// roundMoney rounds to two decimal places.
func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// roundWeight rounds kilograms to grams.
func roundWeight(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

// sumMoney adds amounts without accumulating binary rounding error.
func sumMoney(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	return sum.InexactFloat64()
}

// Formula text shown next to each line item.

func paperFormulaText(variant model.PaperFormula) string {
	if variant == model.PaperFormulaMetricWeight {
		return "reams × sheets/ream × W × H (m²) × gsm / 1000 × price/kg"
	}
	return "reams × W × H × gsm / factor × price/kg"
}

func paperExplanation(variant model.PaperFormula, in PaperInput) string {
	weight := PaperWeightKg(variant, in)
	if variant == model.PaperFormulaMetricWeight {
		return fmt.Sprintf("%.3f reams × %d × %s × %s × %ggsm / 1000 = %.2f kg × %.2f/kg",
			in.Reams, in.SheetsPerReam, in.Size.Width, in.Size.Height, in.GrammageGSM, weight, in.PricePerKg)
	}
	return fmt.Sprintf("%.3f reams × %s × %s × %ggsm / %g = %.2f kg × %.2f/kg",
		in.Reams, in.Size.Width, in.Size.Height, in.GrammageGSM, in.ConversionFactor, weight, in.PricePerKg)
}

const plateFormulaText = "plate unit cost × colors"

func plateExplanation(category model.PlateCategory, unitCost float64, colors int) string {
	return fmt.Sprintf("%s plate %.2f × %d colors", category, unitCost, colors)
}

func inkFormulaText(variant model.InkFormula) string {
	if variant == model.InkFormulaSetupPlusRun {
		return "Σ categories: minimum + sheets × cost/sheet"
	}
	return "Σ categories: max(sheets × cost/sheet, minimum)"
}

func inkExplanation(normal, base rates.Rate, totalSheets, normalColors, baseColors int) string {
	return fmt.Sprintf("normal (%d colors): %d × %.2f, min %.2f; base (%d colors): %d × %.2f, min %.2f",
		normalColors, totalSheets, normal.CostPerSheet, normal.MinimumCost,
		baseColors, totalSheets, base.CostPerSheet, base.MinimumCost)
}

const finishFormulaText = "max(sheets × cost/sheet, minimum)"

func finishExplanation(size string, r rates.Rate, totalSheets int) string {
	return fmt.Sprintf("%s: max(%d × %.2f, %.2f)", size, totalSheets, r.CostPerSheet, r.MinimumCost)
}
