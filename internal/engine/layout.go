// Package engine lays job pieces out on press sheets and turns piece counts
// into sheet and ream purchases.
package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/units"
)

// fitTolerance absorbs floating-point noise from the cm→inch conversion so an
// exact fit (e.g. 25.4cm on a 10in sheet) is not lost to 9.999999.
const fitTolerance = 1e-9

// maxPiecesPerSheet bounds a grid. Larger counts come only from nonsensical
// inputs and are treated as no placement.
const maxPiecesPerSheet = math.MaxInt32

// orientation is one candidate grid placement.
type orientation int

const (
	orientPortrait orientation = iota // Job as entered
	orientRotated                     // Job turned 90°
)

// ComputeLayout finds the grid placement that puts the most job pieces on a
// sheet. Paper dimensions are in inches, job dimensions in centimeters. Ties
// favor the portrait placement. Any zero or negative dimension yields the
// zero result rather than an error.
func ComputeLayout(paperW, paperH units.Inch, jobW, jobH units.Centimeter) model.PlacementResult {
	return ComputeLayoutWith(
		model.PaperSize{Width: paperW, Height: paperH},
		model.JobSize{Width: jobW, Height: jobH},
		model.RotationAuto,
	)
}

// ComputeLayoutWith is ComputeLayout with an orientation override. A forced
// orientation is evaluated on its own even if the other one fits more pieces.
func ComputeLayoutWith(paper model.PaperSize, job model.JobSize, rot model.Rotation) model.PlacementResult {
	if !paper.Defined() || !job.Defined() {
		return model.PlacementResult{}
	}

	jw := job.Width.Inches()
	jh := job.Height.Inches()

	switch rot {
	case model.RotationPortrait:
		return gridPlacement(paper, jw, jh, orientPortrait)
	case model.RotationRotated:
		return gridPlacement(paper, jw, jh, orientRotated)
	}

	best := gridPlacement(paper, jw, jh, orientPortrait)
	rotated := gridPlacement(paper, jw, jh, orientRotated)
	if rotated.PiecesPerSheet > best.PiecesPerSheet {
		best = rotated
	}
	return best
}

// gridPlacement counts an axis-aligned grid of jw×jh pieces in the given orientation.
func gridPlacement(paper model.PaperSize, jw, jh units.Inch, o orientation) model.PlacementResult {
	pw, ph := jw, jh
	if o == orientRotated {
		pw, ph = jh, jw
	}

	fc := fitRatio(paper.Width, pw)
	fr := fitRatio(paper.Height, ph)
	if !(fc*fr <= maxPiecesPerSheet) {
		return model.PlacementResult{}
	}
	cols, rows := int(fc), int(fr)
	pieces := cols * rows

	return model.PlacementResult{
		PiecesPerSheet: pieces,
		Rotated:        o == orientRotated,
		WastePercent:   wastePercent(paper, pieces, float64(jw)*float64(jh)),
		Cols:           cols,
		Rows:           rows,
	}
}

// fitRatio returns how many pieces of length piece fit along length span.
func fitRatio(span, piece units.Inch) float64 {
	if piece <= 0 {
		return 0
	}
	return math.Floor(float64(span)/float64(piece) + fitTolerance)
}

// wastePercent returns the unused share of the sheet, rounded to 2 decimals
// and clamped to [0,100].
func wastePercent(paper model.PaperSize, pieces int, pieceArea float64) float64 {
	paperArea := paper.Area()
	if paperArea <= 0 {
		return 0
	}
	used := float64(pieces) * pieceArea
	w := roundTo((paperArea-used)/paperArea*100, 2)
	if w <= 0 {
		return 0
	}
	if w > 100 {
		return 100
	}
	return w
}

// roundTo rounds half away from zero to the given number of decimal places.
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
