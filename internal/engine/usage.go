package engine

import (
	"errors"

	"github.com/piwi3910/PressQuote/internal/model"
)

// ErrNoPiecesPerSheet is returned when usage is requested for a layout that
// places nothing on the sheet.
var ErrNoPiecesPerSheet = errors.New("pieces per sheet must be positive")

// PlanUsage converts a target quantity into press sheets, master sheets and
// the reams and packs that must be bought to cover them.
//
// Paper is purchased in whole reams plus whole packs, so ReamsNeeded is taken
// from the rounded-up purchase rather than the sheet count. Pricing from the
// raw count would under-price every run that misses a ream boundary.
func PlanUsage(quantity, piecesPerSheet, wastageSheets, cutsPerSheet, sheetsPerReam, sheetsPerPack int) (model.PaperUsagePlan, error) {
	if piecesPerSheet <= 0 {
		return model.PaperUsagePlan{}, ErrNoPiecesPerSheet
	}
	if quantity < 0 {
		quantity = 0
	}
	if wastageSheets < 0 {
		wastageSheets = 0
	}
	if cutsPerSheet < 1 {
		cutsPerSheet = 1
	}
	if sheetsPerReam <= 0 {
		sheetsPerReam = model.DefaultSettings().SheetsPerReam
	}
	if sheetsPerPack <= 0 {
		sheetsPerPack = model.DefaultSettings().SheetsPerPack
	}

	sheets := ceilDiv(quantity, piecesPerSheet)
	total := sheets + wastageSheets
	master := ceilDiv(total, cutsPerSheet)

	fullReams := master / sheetsPerReam
	remaining := master % sheetsPerReam
	packs := 0
	if remaining > 0 {
		packs = ceilDiv(remaining, sheetsPerPack)
	}

	purchased := fullReams*sheetsPerReam + packs*sheetsPerPack

	return model.PaperUsagePlan{
		SheetsNeeded:           sheets,
		WastageSheets:          wastageSheets,
		TotalSheetsWithWastage: total,
		CutsPerSheet:           cutsPerSheet,
		MasterSheetsNeeded:     master,
		FullReams:              fullReams,
		RemainingSheets:        remaining,
		PacksNeeded:            packs,
		TotalSheetsWithPacks:   purchased,
		ReamsNeeded:            roundTo(float64(purchased)/float64(sheetsPerReam), 3),
	}, nil
}

// ceilDiv returns ⌈a/b⌉ for non-negative a and positive b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
