package model

import "github.com/piwi3910/PressQuote/internal/units"

// PlateCategory groups presses by the plate size they take.
type PlateCategory string

const (
	PlateSmall PlateCategory = "small"
	PlateLarge PlateCategory = "large"
)

// InkCategory separates normal color passes from base/flood passes.
type InkCategory string

const (
	InkNormal InkCategory = "normal"
	InkBase   InkCategory = "base"
)

// FinishKind identifies a per-sheet finishing process.
type FinishKind string

const (
	FinishCoating FinishKind = "coating"
	FinishSpotUV  FinishKind = "spot_uv"
)

// PaperFormula selects how paper cost is derived from the purchased reams.
type PaperFormula string

const (
	PaperFormulaReamWeight   PaperFormula = "ream-weight"   // reams × W × H × gsm / factor × price/kg
	PaperFormulaMetricWeight PaperFormula = "metric-weight" // purchased sheets × m² × gsm/1000 × price/kg
)

// InkFormula selects how a category's minimum charge combines with the run cost.
type InkFormula string

const (
	InkFormulaFloor        InkFormula = "floor"          // max(run, minimum)
	InkFormulaSetupPlusRun InkFormula = "setup-plus-run" // minimum + run
)

// Settings holds the pricing conventions applied to every quote.
type Settings struct {
	ConversionFactor     float64 `json:"conversion_factor" mapstructure:"conversion_factor"`           // Folds in², gsm and ream size into the paper formula
	DefaultWastageSheets int     `json:"default_wastage_sheets" mapstructure:"default_wastage_sheets"` // Make-ready sheets added to every run
	SheetsPerReam        int     `json:"sheets_per_ream" mapstructure:"sheets_per_ream"`
	SheetsPerPack        int     `json:"sheets_per_pack" mapstructure:"sheets_per_pack"`

	// Press sheets larger than this in either dimension need large plates.
	LargePlateThreshold units.Inch `json:"large_plate_threshold" mapstructure:"large_plate_threshold"`

	ProfitMargin float64      `json:"profit_margin" mapstructure:"profit_margin"` // Fraction in [0,1]
	PaperFormula PaperFormula `json:"paper_formula" mapstructure:"paper_formula"`
	InkFormula   InkFormula   `json:"ink_formula" mapstructure:"ink_formula"`
}

func DefaultSettings() Settings {
	return Settings{
		ConversionFactor:     3100,
		DefaultWastageSheets: 250,
		SheetsPerReam:        500,
		SheetsPerPack:        100,
		LargePlateThreshold:  24,
		ProfitMargin:         0.30,
		PaperFormula:         PaperFormulaReamWeight,
		InkFormula:           InkFormulaFloor,
	}
}

// Normalize replaces unusable values with the defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.ConversionFactor <= 0 {
		s.ConversionFactor = d.ConversionFactor
	}
	if s.DefaultWastageSheets < 0 {
		s.DefaultWastageSheets = 0
	}
	if s.SheetsPerReam <= 0 {
		s.SheetsPerReam = d.SheetsPerReam
	}
	if s.SheetsPerPack <= 0 {
		s.SheetsPerPack = d.SheetsPerPack
	}
	if s.LargePlateThreshold <= 0 {
		s.LargePlateThreshold = d.LargePlateThreshold
	}
	if s.ProfitMargin < 0 || s.ProfitMargin > 1 {
		s.ProfitMargin = d.ProfitMargin
	}
	switch s.PaperFormula {
	case PaperFormulaReamWeight, PaperFormulaMetricWeight:
	default:
		s.PaperFormula = d.PaperFormula
	}
	switch s.InkFormula {
	case InkFormulaFloor, InkFormulaSetupPlusRun:
	default:
		s.InkFormula = d.InkFormula
	}
	return s
}
