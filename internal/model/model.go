package model

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/piwi3910/PressQuote/internal/units"
)

// Rotation selects how a job piece is oriented on the press sheet.
type Rotation int

const (
	RotationAuto     Rotation = iota // Optimizer picks the orientation with more pieces
	RotationPortrait                 // Force the job as entered
	RotationRotated                  // Force the job turned 90°
)

func (r Rotation) String() string {
	switch r {
	case RotationPortrait:
		return "portrait"
	case RotationRotated:
		return "rotated"
	default:
		return "auto"
	}
}

// ParseRotation converts a rotation name into a Rotation. Unknown names map to auto.
func ParseRotation(s string) Rotation {
	switch s {
	case "portrait":
		return RotationPortrait
	case "rotated":
		return RotationRotated
	default:
		return RotationAuto
	}
}

func (r Rotation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts "auto", "portrait" or "rotated". An empty value means auto.
func (r *Rotation) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "", "auto", "portrait", "rotated":
		*r = ParseRotation(s)
		return nil
	default:
		return fmt.Errorf("unknown rotation %q", s)
	}
}

// PaperSize is a sheet size in inches.
type PaperSize struct {
	Width  units.Inch `json:"width"`
	Height units.Inch `json:"height"`
}

// Area returns the sheet area in square inches.
func (p PaperSize) Area() float64 {
	return float64(p.Width) * float64(p.Height)
}

// Defined reports whether both dimensions are positive.
func (p PaperSize) Defined() bool {
	return p.Width > 0 && p.Height > 0
}

// JobSize is the finished piece size in centimeters.
type JobSize struct {
	Width  units.Centimeter `json:"width"`
	Height units.Centimeter `json:"height"`
}

// Defined reports whether both dimensions are positive.
func (j JobSize) Defined() bool {
	return j.Width > 0 && j.Height > 0
}

// JobSpec describes the piece being printed.
type JobSpec struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Size       JobSize `json:"size"`
	Colors     int     `json:"colors"`      // Total color passes
	BaseColors int     `json:"base_colors"` // Flood/underprint passes, subset of Colors

	// ManualPiecesPerSheet bypasses the layout result when > 0.
	ManualPiecesPerSheet int      `json:"manual_pieces_per_sheet,omitempty"`
	Rotation             Rotation `json:"rotation"`
}

// NormalColors returns the number of non-base color passes.
func (j JobSpec) NormalColors() int {
	n := j.Colors - j.BaseColors
	if n < 0 {
		return 0
	}
	return n
}

// NewJobSpec returns a job with a short random ID and automatic rotation.
func NewJobSpec(name string, w, h units.Centimeter, colors int) JobSpec {
	return JobSpec{
		ID:       uuid.New().String()[:8],
		Name:     name,
		Size:     JobSize{Width: w, Height: h},
		Colors:   colors,
		Rotation: RotationAuto,
	}
}

// PaperSpec identifies the paper stock and its sheet geometry.
type PaperSpec struct {
	Type         string    `json:"type"`
	GrammageGSM  float64   `json:"grammage_gsm"`
	Supplier     string    `json:"supplier"`
	Size         PaperSize `json:"size"`                 // Master (supplier) sheet
	PrintSize    PaperSize `json:"print_size,omitempty"` // Press sheet; zero means same as Size
	CutsPerSheet int       `json:"cuts_per_sheet"`       // Press sheets cut from one master sheet
}

// PressSheet returns the sheet that goes through the press.
func (p PaperSpec) PressSheet() PaperSize {
	if p.PrintSize.Defined() {
		return p.PrintSize
	}
	return p.Size
}

// Cuts returns CutsPerSheet, treating anything below 1 as 1.
func (p PaperSpec) Cuts() int {
	if p.CutsPerSheet < 1 {
		return 1
	}
	return p.CutsPerSheet
}

// FinishSelection is a finishing pass priced per sheet for a chosen size.
type FinishSelection struct {
	Enabled bool   `json:"enabled"`
	Size    string `json:"size"`
}

// FlatCost is a user-entered amount that can be switched on or off.
type FlatCost struct {
	Enabled bool    `json:"enabled"`
	Amount  float64 `json:"amount"`
}

// Value returns the amount when enabled and non-negative, else 0.
func (f FlatCost) Value() float64 {
	if !f.Enabled || f.Amount < 0 {
		return 0
	}
	return f.Amount
}

// FinishingOptions holds the optional work on top of printing.
type FinishingOptions struct {
	Coating   FinishSelection `json:"coating"`
	SpotUV    FinishSelection `json:"spot_uv"`
	DieCut    FlatCost        `json:"die_cut"`
	Shipping  FlatCost        `json:"shipping"`
	Packaging FlatCost        `json:"packaging"`
	BasePrint FlatCost        `json:"base_print"`

	// WastageSheets overrides Settings.DefaultWastageSheets when set.
	WastageSheets *int `json:"wastage_sheets,omitempty"`
}

// PlacementResult is the outcome of laying job pieces out on one sheet.
// It is derived from the inputs and never stored on its own.
type PlacementResult struct {
	PiecesPerSheet int     `json:"pieces_per_sheet"`
	Rotated        bool    `json:"rotated"`
	WastePercent   float64 `json:"waste_percent"`
	Cols           int     `json:"cols"`
	Rows           int     `json:"rows"`
}

// Fits reports whether at least one piece fits.
func (p PlacementResult) Fits() bool {
	return p.PiecesPerSheet > 0
}

// PaperUsagePlan is the sheet count for one quantity and the purchase units it implies.
type PaperUsagePlan struct {
	SheetsNeeded           int     `json:"sheets_needed"`
	WastageSheets          int     `json:"wastage_sheets"`
	TotalSheetsWithWastage int     `json:"total_sheets_with_wastage"`
	CutsPerSheet           int     `json:"cuts_per_sheet"`
	MasterSheetsNeeded     int     `json:"master_sheets_needed"`
	FullReams              int     `json:"full_reams"`
	RemainingSheets        int     `json:"remaining_sheets"`
	PacksNeeded            int     `json:"packs_needed"`
	TotalSheetsWithPacks   int     `json:"total_sheets_with_packs"`
	ReamsNeeded            float64 `json:"reams_needed"`
}

// QuoteRequest is everything needed to price a job for up to three quantities.
type QuoteRequest struct {
	Job        JobSpec          `json:"job"`
	Paper      PaperSpec        `json:"paper"`
	Finishing  FinishingOptions `json:"finishing"`
	Quantities []int            `json:"quantities"`

	// ProfitMargin overrides Settings.ProfitMargin when set. Fraction in [0,1].
	ProfitMargin *float64 `json:"profit_margin,omitempty"`
}

// MaxQuantities is the number of quantities a single request may price.
const MaxQuantities = 3
