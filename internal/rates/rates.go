// Package rates resolves the prices the quote engine needs: paper per
// kilogram, plate unit costs, ink and finishing rates. Lookups may fail or be
// absent; callers fall back to the fallback table and never fail a quote.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/piwi3910/PressQuote/internal/model"
)

// ErrRateNotFound is returned when a provider has no rate for the key.
var ErrRateNotFound = errors.New("rate not found")

// PaperKey identifies a paper price.
type PaperKey struct {
	Type        string  `json:"type"`
	GrammageGSM float64 `json:"grammage_gsm"`
	Supplier    string  `json:"supplier"`
}

// NormalizeKey is the form text keys are compared in by every store:
// surrounding space trimmed, lower case.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalized returns the key with Type and Supplier in NormalizeKey form.
func (k PaperKey) Normalized() PaperKey {
	return PaperKey{Type: NormalizeKey(k.Type), GrammageGSM: k.GrammageGSM, Supplier: NormalizeKey(k.Supplier)}
}

func (k PaperKey) String() string {
	return fmt.Sprintf("%s/%ggsm/%s", k.Type, k.GrammageGSM, k.Supplier)
}

// Rate is a per-sheet price with a minimum charge per job.
type Rate struct {
	CostPerSheet float64 `json:"cost_per_sheet"`
	MinimumCost  float64 `json:"minimum_cost"`
}

// Provider resolves rates from an external data source.
type Provider interface {
	PaperPricePerKg(ctx context.Context, key PaperKey) (float64, error)
	PlateUnitCost(ctx context.Context, category model.PlateCategory) (float64, error)
	InkRate(ctx context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error)
	FinishRate(ctx context.Context, kind model.FinishKind, size string) (Rate, error)
}

// inkKey and finishKey index the in-memory tables.
type inkKey struct {
	Plate model.PlateCategory
	Ink   model.InkCategory
}

type finishKey struct {
	Kind model.FinishKind
	Size string
}

// StaticProvider serves rates from in-memory maps. It is used for tests and
// for quoting from a job file without a database.
type StaticProvider struct {
	paper  map[PaperKey]float64
	plates map[model.PlateCategory]float64
	inks   map[inkKey]Rate
	finish map[finishKey]Rate
}

// NewStaticProvider returns an empty provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		paper:  make(map[PaperKey]float64),
		plates: make(map[model.PlateCategory]float64),
		inks:   make(map[inkKey]Rate),
		finish: make(map[finishKey]Rate),
	}
}

// SetPaper sets the price per kg for a paper.
func (s *StaticProvider) SetPaper(key PaperKey, pricePerKg float64) *StaticProvider {
	s.paper[key.Normalized()] = pricePerKg
	return s
}

// SetPlate sets the unit cost of one plate.
func (s *StaticProvider) SetPlate(category model.PlateCategory, unitCost float64) *StaticProvider {
	s.plates[category] = unitCost
	return s
}

// SetInk sets the ink rate for a plate and ink category.
func (s *StaticProvider) SetInk(category model.PlateCategory, ink model.InkCategory, r Rate) *StaticProvider {
	s.inks[inkKey{category, ink}] = r
	return s
}

// SetFinish sets the coating or spot UV rate for a finishing size.
func (s *StaticProvider) SetFinish(kind model.FinishKind, size string, r Rate) *StaticProvider {
	s.finish[finishKey{kind, NormalizeKey(size)}] = r
	return s
}

func (s *StaticProvider) PaperPricePerKg(_ context.Context, key PaperKey) (float64, error) {
	v, ok := s.paper[key.Normalized()]
	if !ok {
		return 0, fmt.Errorf("paper %s: %w", key, ErrRateNotFound)
	}
	return v, nil
}

func (s *StaticProvider) PlateUnitCost(_ context.Context, category model.PlateCategory) (float64, error) {
	v, ok := s.plates[category]
	if !ok {
		return 0, fmt.Errorf("plate %s: %w", category, ErrRateNotFound)
	}
	return v, nil
}

func (s *StaticProvider) InkRate(_ context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error) {
	v, ok := s.inks[inkKey{category, ink}]
	if !ok {
		return Rate{}, fmt.Errorf("ink %s/%s: %w", category, ink, ErrRateNotFound)
	}
	return v, nil
}

func (s *StaticProvider) FinishRate(_ context.Context, kind model.FinishKind, size string) (Rate, error) {
	v, ok := s.finish[finishKey{kind, NormalizeKey(size)}]
	if !ok {
		return Rate{}, fmt.Errorf("%s %s: %w", kind, size, ErrRateNotFound)
	}
	return v, nil
}

// RowKind identifies which table a RateRow belongs to.
type RowKind string

const (
	KindPaper   RowKind = "paper"
	KindPlate   RowKind = "plate"
	KindInk     RowKind = "ink"
	KindCoating RowKind = "coating"
	KindSpotUV  RowKind = "spot_uv"
)

// ParseRowKind accepts the kind names used in rate sheets.
func ParseRowKind(s string) (RowKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paper", "stock":
		return KindPaper, true
	case "plate", "plates":
		return KindPlate, true
	case "ink":
		return KindInk, true
	case "coating", "varnish":
		return KindCoating, true
	case "spot_uv", "spot uv", "spotuv", "uv":
		return KindSpotUV, true
	default:
		return "", false
	}
}

// RateRow is one imported price. Key is the paper type, the plate category,
// or the finishing size depending on Kind. Price is per kg for paper, per
// plate for plates and per sheet otherwise.
type RateRow struct {
	Kind        RowKind           `json:"kind"`
	Key         string            `json:"key"`
	Ink         model.InkCategory `json:"ink,omitempty"`
	GrammageGSM float64           `json:"grammage_gsm,omitempty"`
	Supplier    string            `json:"supplier,omitempty"`
	Price       float64           `json:"price"`
	Minimum     float64           `json:"minimum,omitempty"`
}

// Apply loads rows into a StaticProvider.
func (s *StaticProvider) Apply(rows []RateRow) *StaticProvider {
	for _, r := range rows {
		switch r.Kind {
		case KindPaper:
			s.SetPaper(PaperKey{Type: r.Key, GrammageGSM: r.GrammageGSM, Supplier: r.Supplier}, r.Price)
		case KindPlate:
			s.SetPlate(model.PlateCategory(r.Key), r.Price)
		case KindInk:
			s.SetInk(model.PlateCategory(r.Key), r.Ink, Rate{CostPerSheet: r.Price, MinimumCost: r.Minimum})
		case KindCoating:
			s.SetFinish(model.FinishCoating, r.Key, Rate{CostPerSheet: r.Price, MinimumCost: r.Minimum})
		case KindSpotUV:
			s.SetFinish(model.FinishSpotUV, r.Key, Rate{CostPerSheet: r.Price, MinimumCost: r.Minimum})
		}
	}
	return s
}
