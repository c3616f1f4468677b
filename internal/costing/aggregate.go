package costing

import (
	"errors"
	"fmt"

	"github.com/piwi3910/PressQuote/internal/model"
)

// Line item names.
const (
	ItemPaper     = "paper"
	ItemPlates    = "plates"
	ItemInk       = "ink"
	ItemCoating   = "coating"
	ItemSpotUV    = "spot_uv"
	ItemDieCut    = "die_cut"
	ItemShipping  = "shipping"
	ItemPackaging = "packaging"
	ItemBasePrint = "base_print"
)

// RateSource records where the rate behind a line item came from.
type RateSource string

const (
	SourceLive     RateSource = "live"     // Resolved from the rate provider
	SourceFallback RateSource = "fallback" // Built-in default table
	SourceMissing  RateSource = "missing"  // No rate anywhere; amount is 0
	SourceUser     RateSource = "user"     // Entered with the job
	SourceNone     RateSource = "n/a"      // Option not selected
)

// State is the lifecycle of a Breakdown.
type State string

const (
	StateComputed State = "computed"
	StateEdited   State = "edited"
)

var (
	ErrUnknownItem     = errors.New("unknown line item")
	ErrNotEditable     = errors.New("line item is not editable")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidMargin   = errors.New("profit margin must be between 0 and 1")
)

// CostLineItem is one contribution to a quote. Formula stays as computed even
// when Amount is overridden.
type CostLineItem struct {
	Name           string     `json:"name"`
	Amount         float64    `json:"amount"`
	Formula        string     `json:"formula"`
	Explanation    string     `json:"explanation"`
	Editable       bool       `json:"editable"`
	Overridden     bool       `json:"overridden"`
	OriginalAmount float64    `json:"original_amount,omitempty"`
	RateSource     RateSource `json:"rate_source"`
}

// Breakdown is the quote for a single quantity.
type Breakdown struct {
	ID           string         `json:"id"`
	Quantity     int            `json:"quantity"`
	LineItems    []CostLineItem `json:"line_items"`
	BaseCost     float64        `json:"base_cost"`
	ProfitMargin float64        `json:"profit_margin"`
	Profit       float64        `json:"profit"`
	TotalCost    float64        `json:"total_cost"`
	UnitCost     float64        `json:"unit_cost"`
	State        State          `json:"state"`

	Placement           model.PlacementResult `json:"placement"`
	Usage               model.PaperUsagePlan  `json:"usage"`
	PaperWeightKg       float64               `json:"paper_weight_kg"`
	PlacementOverridden bool                  `json:"placement_overridden"`
	Warnings            []string              `json:"warnings,omitempty"`
}

// Aggregate sums line items into a computed Breakdown.
func Aggregate(items []CostLineItem, margin float64, quantity int) Breakdown {
	b := Breakdown{
		Quantity:     quantity,
		LineItems:    items,
		ProfitMargin: margin,
		State:        StateComputed,
	}
	b.Recompute()
	return b
}

// Recompute derives every total from the line items. It is the only place
// totals are written.
func (b *Breakdown) Recompute() {
	amounts := make([]float64, len(b.LineItems))
	for i, item := range b.LineItems {
		amounts[i] = item.Amount
	}
	b.BaseCost = sumMoney(amounts...)
	b.Profit = b.BaseCost * b.ProfitMargin
	b.TotalCost = b.BaseCost + b.Profit
	if b.Quantity > 0 {
		b.UnitCost = b.TotalCost / float64(b.Quantity)
	} else {
		b.UnitCost = 0
	}
}

// Item returns the named line item.
func (b *Breakdown) Item(name string) (CostLineItem, bool) {
	if i := b.indexOf(name); i >= 0 {
		return b.LineItems[i], true
	}
	return CostLineItem{}, false
}

func (b *Breakdown) indexOf(name string) int {
	for i := range b.LineItems {
		if b.LineItems[i].Name == name {
			return i
		}
	}
	return -1
}

// Override replaces one editable item's amount and re-derives the totals.
func (b *Breakdown) Override(name string, amount float64) error {
	if b.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if amount < 0 {
		return fmt.Errorf("%s: %w", name, ErrNegativeAmount)
	}
	i := b.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrUnknownItem)
	}
	item := &b.LineItems[i]
	if !item.Editable {
		return fmt.Errorf("%q: %w", name, ErrNotEditable)
	}

	if !item.Overridden {
		item.OriginalAmount = item.Amount
		item.Overridden = true
	}
	item.Amount = amount
	b.State = StateEdited
	b.Recompute()
	return nil
}

// Reset restores one overridden item. The breakdown returns to computed once
// no item is overridden.
func (b *Breakdown) Reset(name string) error {
	i := b.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrUnknownItem)
	}
	item := &b.LineItems[i]
	if item.Overridden {
		item.Amount = item.OriginalAmount
		item.OriginalAmount = 0
		item.Overridden = false
	}

	b.State = StateComputed
	for _, it := range b.LineItems {
		if it.Overridden {
			b.State = StateEdited
			break
		}
	}
	b.Recompute()
	return nil
}

// Check rejects a breakdown the calculator could not have produced: a
// non-positive quantity, a margin outside [0,1] or a negative amount.
func (b *Breakdown) Check() error {
	if b.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if b.ProfitMargin < 0 || b.ProfitMargin > 1 {
		return fmt.Errorf("%g: %w", b.ProfitMargin, ErrInvalidMargin)
	}
	for _, item := range b.LineItems {
		if item.Amount < 0 || item.OriginalAmount < 0 {
			return fmt.Errorf("%s: %w", item.Name, ErrNegativeAmount)
		}
	}
	return nil
}

// Clone returns a deep copy so overrides on the copy leave b untouched.
func (b Breakdown) Clone() Breakdown {
	b.LineItems = append([]CostLineItem(nil), b.LineItems...)
	b.Warnings = append([]string(nil), b.Warnings...)
	return b
}
