package costing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/piwi3910/PressQuote/internal/model"
)

// ErrPlacementInfeasible means the job fits on the press sheet in neither
// orientation. It is distinct from a ValidationError: the request is complete
// but the paper or job size has to change.
var ErrPlacementInfeasible = errors.New("job does not fit on the press sheet")

// Validated fields, in the order they are checked.
const (
	FieldPaperType    = "paper.type"
	FieldGrammage     = "paper.grammage_gsm"
	FieldSupplier     = "paper.supplier"
	FieldDimensions   = "dimensions"
	FieldColors       = "job.colors"
	FieldQuantities   = "quantities"
	FieldWastage      = "finishing.wastage_sheets"
	FieldProfitMargin = "profit_margin"
	FieldPlacement    = "job.manual_pieces_per_sheet"
)

// ValidationError names the first missing or invalid input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a request in priority order and reports the first failure.
func Validate(req model.QuoteRequest) error {
	if strings.TrimSpace(req.Paper.Type) == "" {
		return invalid(FieldPaperType, "paper type is required")
	}
	if req.Paper.GrammageGSM <= 0 {
		return invalid(FieldGrammage, "grammage must be positive")
	}
	if strings.TrimSpace(req.Paper.Supplier) == "" {
		return invalid(FieldSupplier, "supplier is required")
	}

	if !req.Job.Size.Defined() {
		return invalid(FieldDimensions, "job width and height are required")
	}
	if !req.Paper.Size.Defined() {
		return invalid(FieldDimensions, "paper width and height are required")
	}
	if ps := req.Paper.PrintSize; (ps.Width != 0 || ps.Height != 0) && !ps.Defined() {
		return invalid(FieldDimensions, "print size needs both width and height")
	}

	if req.Job.Colors <= 0 {
		return invalid(FieldColors, "at least one color is required")
	}
	if req.Job.BaseColors < 0 || req.Job.BaseColors > req.Job.Colors {
		return invalid(FieldColors, "base colors must be between 0 and %d", req.Job.Colors)
	}

	if len(req.Quantities) == 0 {
		return invalid(FieldQuantities, "at least one quantity is required")
	}
	if len(req.Quantities) > model.MaxQuantities {
		return invalid(FieldQuantities, "at most %d quantities per quote", model.MaxQuantities)
	}
	for i, q := range req.Quantities {
		if q <= 0 {
			return invalid(FieldQuantities, "quantity %d must be positive, got %d", i+1, q)
		}
	}

	if w := req.Finishing.WastageSheets; w != nil && *w < 0 {
		return invalid(FieldWastage, "wastage sheets must not be negative, got %d", *w)
	}
	if m := req.ProfitMargin; m != nil && (*m < 0 || *m > 1) {
		return invalid(FieldProfitMargin, "margin must be a fraction between 0 and 1")
	}
	if req.Job.ManualPiecesPerSheet < 0 {
		return invalid(FieldPlacement, "manual pieces per sheet must not be negative")
	}
	return nil
}
