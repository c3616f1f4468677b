package costing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/piwi3910/PressQuote/internal/engine"
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
	"github.com/piwi3910/PressQuote/internal/rates/fallback"
)

// breakdownNamespace seeds deterministic breakdown IDs.
var breakdownNamespace = uuid.MustParse("6f1c2a5e-3d4b-4c8a-9e7f-2b1d0c9a8e71")

// Calculator prices quote requests.
type Calculator struct {
	rates    rates.Provider
	fallback fallback.Table
	settings model.Settings
	logger   log.Logger
}

// NewCalculator builds a Calculator. A nil provider prices everything from
// the fallback table.
func NewCalculator(provider rates.Provider, settings model.Settings, logger log.Logger) *Calculator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Calculator{
		rates:    provider,
		fallback: fallback.Default(),
		settings: settings.Normalize(),
		logger:   log.With(logger, "component", "calculator"),
	}
}

// Settings returns the normalized pricing settings the calculator uses.
func (c *Calculator) Settings() model.Settings {
	return c.settings
}

// resolvedRate is a looked-up price plus where it came from.
type resolvedRate struct {
	Rate   rates.Rate
	Source RateSource
}

// jobRates is every rate one request needs, resolved once for all quantities.
type jobRates struct {
	Paper     resolvedRate // Rate.CostPerSheet holds price per kg
	Plate     resolvedRate // Rate.CostPerSheet holds unit cost
	PlateCat  model.PlateCategory
	InkNormal resolvedRate
	InkBase   resolvedRate
	Coating   resolvedRate
	SpotUV    resolvedRate
	Warnings  []string
}

// CalculateQuotes returns one computed Breakdown per requested quantity, in
// request order.
func (c *Calculator) CalculateQuotes(ctx context.Context, req model.QuoteRequest) ([]Breakdown, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	press := req.Paper.PressSheet()
	placement := engine.ComputeLayoutWith(press, req.Job.Size, req.Job.Rotation)
	pieces := placement.PiecesPerSheet
	overridden := false
	if req.Job.ManualPiecesPerSheet > 0 {
		pieces = req.Job.ManualPiecesPerSheet
		overridden = true
	} else if !placement.Fits() {
		return nil, fmt.Errorf("%w: %s × %s job on %s × %s sheet",
			ErrPlacementInfeasible, req.Job.Size.Width, req.Job.Size.Height, press.Width, press.Height)
	}

	jr := c.resolveRates(ctx, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	margin := c.settings.ProfitMargin
	if req.ProfitMargin != nil {
		margin = *req.ProfitMargin
	}
	wastage := c.settings.DefaultWastageSheets
	if req.Finishing.WastageSheets != nil {
		wastage = *req.Finishing.WastageSheets
	}
	seed := requestSeed(req)

	return iter.MapErr(req.Quantities, func(qty *int) (Breakdown, error) {
		plan, err := engine.PlanUsage(*qty, pieces, wastage, req.Paper.Cuts(), c.settings.SheetsPerReam, c.settings.SheetsPerPack)
		if err != nil {
			return Breakdown{}, fmt.Errorf("quantity %d: %w", *qty, err)
		}

		paperIn := c.paperInput(req, plan, jr)
		b := Aggregate(c.lineItems(req, plan, paperIn, jr), margin, *qty)
		b.ID = uuid.NewSHA1(breakdownNamespace, []byte(fmt.Sprintf("%s/%d", seed, *qty))).String()[:8]
		b.Placement = placement
		b.Usage = plan
		b.PaperWeightKg = roundWeight(PaperWeightKg(c.settings.PaperFormula, paperIn))
		b.PlacementOverridden = overridden
		b.Warnings = append([]string(nil), jr.Warnings...)
		return b, nil
	})
}

// requestSeed is a stable encoding of the request, so re-running it yields
// the same breakdown IDs.
func requestSeed(req model.QuoteRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return req.Job.ID
	}
	return string(data)
}

// resolveRates looks up each rate the request needs. A failed lookup falls
// back to the default table, then to a zero-cost "missing" rate.
func (c *Calculator) resolveRates(ctx context.Context, req model.QuoteRequest) jobRates {
	jr := jobRates{PlateCat: PlateCategoryFor(req.Paper.PressSheet(), c.settings.LargePlateThreshold)}
	na := resolvedRate{Source: SourceNone}
	jr.InkNormal, jr.InkBase, jr.Coating, jr.SpotUV = na, na, na, na

	key := rates.PaperKey{Type: req.Paper.Type, GrammageGSM: req.Paper.GrammageGSM, Supplier: req.Paper.Supplier}
	jr.Paper = c.lookup(&jr, "paper "+key.String(), func() (rates.Rate, error) {
		v, err := c.rates.PaperPricePerKg(ctx, key)
		return rates.Rate{CostPerSheet: v}, err
	}, func() (rates.Rate, bool) {
		return rates.Rate{}, false
	})

	jr.Plate = c.lookup(&jr, fmt.Sprintf("plate %s", jr.PlateCat), func() (rates.Rate, error) {
		v, err := c.rates.PlateUnitCost(ctx, jr.PlateCat)
		return rates.Rate{CostPerSheet: v}, err
	}, func() (rates.Rate, bool) {
		v, ok := c.fallback.PlateUnitCost(jr.PlateCat)
		return rates.Rate{CostPerSheet: v}, ok
	})

	ink := func(cat model.InkCategory) resolvedRate {
		return c.lookup(&jr, fmt.Sprintf("ink %s/%s", jr.PlateCat, cat), func() (rates.Rate, error) {
			return c.rates.InkRate(ctx, jr.PlateCat, cat)
		}, func() (rates.Rate, bool) {
			return c.fallback.InkRate(jr.PlateCat, cat)
		})
	}
	if req.Job.NormalColors() > 0 {
		jr.InkNormal = ink(model.InkNormal)
	}
	if req.Job.BaseColors > 0 {
		jr.InkBase = ink(model.InkBase)
	}

	finish := func(kind model.FinishKind, size string) resolvedRate {
		return c.lookup(&jr, fmt.Sprintf("%s %s", kind, size), func() (rates.Rate, error) {
			return c.rates.FinishRate(ctx, kind, size)
		}, func() (rates.Rate, bool) {
			return c.fallback.FinishRate(kind, size)
		})
	}
	if req.Finishing.Coating.Enabled {
		jr.Coating = finish(model.FinishCoating, req.Finishing.Coating.Size)
	}
	if req.Finishing.SpotUV.Enabled {
		jr.SpotUV = finish(model.FinishSpotUV, req.Finishing.SpotUV.Size)
	}
	return jr
}

func (c *Calculator) lookup(jr *jobRates, what string, live func() (rates.Rate, error), def func() (rates.Rate, bool)) resolvedRate {
	var err error
	if c.rates != nil {
		var r rates.Rate
		if r, err = live(); err == nil {
			return resolvedRate{Rate: r, Source: SourceLive}
		}
		if !errors.Is(err, rates.ErrRateNotFound) {
			level.Error(c.logger).Log("msg", "rate lookup failed", "rate", what, "err", err)
		}
	}

	if r, ok := def(); ok {
		level.Warn(c.logger).Log("msg", "using fallback rate", "rate", what, "err", err)
		jr.Warnings = append(jr.Warnings, fmt.Sprintf("%s: live rate unavailable, using fallback", what))
		return resolvedRate{Rate: r, Source: SourceFallback}
	}

	level.Warn(c.logger).Log("msg", "rate missing, line item set to 0", "rate", what, "err", err)
	jr.Warnings = append(jr.Warnings, fmt.Sprintf("%s: no rate found, cost counted as 0", what))
	return resolvedRate{Source: SourceMissing}
}

func (c *Calculator) paperInput(req model.QuoteRequest, plan model.PaperUsagePlan, jr jobRates) PaperInput {
	return PaperInput{
		Reams:            plan.ReamsNeeded,
		SheetsPerReam:    c.settings.SheetsPerReam,
		Size:             req.Paper.Size,
		GrammageGSM:      req.Paper.GrammageGSM,
		PricePerKg:       jr.Paper.Rate.CostPerSheet,
		ConversionFactor: c.settings.ConversionFactor,
	}
}

// lineItems prices one quantity.
func (c *Calculator) lineItems(req model.QuoteRequest, plan model.PaperUsagePlan, paperIn PaperInput, jr jobRates) []CostLineItem {
	s := c.settings
	sheets := plan.TotalSheetsWithWastage

	items := []CostLineItem{
		{
			Name:        ItemPaper,
			Amount:      roundMoney(PaperCost(s.PaperFormula, paperIn)),
			Formula:     paperFormulaText(s.PaperFormula),
			Explanation: paperExplanation(s.PaperFormula, paperIn),
			Editable:    true,
			RateSource:  jr.Paper.Source,
		},
		{
			Name:        ItemPlates,
			Amount:      roundMoney(PlateCost(jr.Plate.Rate.CostPerSheet, req.Job.Colors)),
			Formula:     plateFormulaText,
			Explanation: plateExplanation(jr.PlateCat, jr.Plate.Rate.CostPerSheet, req.Job.Colors),
			Editable:    true,
			RateSource:  jr.Plate.Source,
		},
		{
			Name:        ItemInk,
			Amount:      roundMoney(InkCost(s.InkFormula, jr.InkNormal.Rate, jr.InkBase.Rate, sheets, req.Job.NormalColors(), req.Job.BaseColors)),
			Formula:     inkFormulaText(s.InkFormula),
			Explanation: inkExplanation(jr.InkNormal.Rate, jr.InkBase.Rate, sheets, req.Job.NormalColors(), req.Job.BaseColors),
			Editable:    true,
			RateSource:  inkSource(jr),
		},
		finishItem(ItemCoating, req.Finishing.Coating, jr.Coating, sheets),
		finishItem(ItemSpotUV, req.Finishing.SpotUV, jr.SpotUV, sheets),
		flatItem(ItemDieCut, req.Finishing.DieCut),
		flatItem(ItemShipping, req.Finishing.Shipping),
		flatItem(ItemPackaging, req.Finishing.Packaging),
		flatItem(ItemBasePrint, req.Finishing.BasePrint),
	}
	return items
}

// inkSource reports the weakest source of the two ink categories.
func inkSource(jr jobRates) RateSource {
	rank := map[RateSource]int{SourceNone: 0, SourceLive: 1, SourceFallback: 2, SourceMissing: 3}
	src := jr.InkNormal.Source
	if rank[jr.InkBase.Source] > rank[src] {
		src = jr.InkBase.Source
	}
	return src
}

func finishItem(name string, sel model.FinishSelection, r resolvedRate, sheets int) CostLineItem {
	if !sel.Enabled {
		return CostLineItem{Name: name, Formula: finishFormulaText, Explanation: "not selected", RateSource: SourceNone}
	}
	return CostLineItem{
		Name:        name,
		Amount:      roundMoney(FinishCost(true, r.Rate, sheets)),
		Formula:     finishFormulaText,
		Explanation: finishExplanation(sel.Size, r.Rate, sheets),
		Editable:    true,
		RateSource:  r.Source,
	}
}

func flatItem(name string, fc model.FlatCost) CostLineItem {
	if !fc.Enabled {
		return CostLineItem{Name: name, Formula: "entered amount", Explanation: "not selected", RateSource: SourceNone}
	}
	return CostLineItem{
		Name:        name,
		Amount:      roundMoney(fc.Value()),
		Formula:     "entered amount",
		Explanation: fmt.Sprintf("%.2f", fc.Value()),
		Editable:    true,
		RateSource:  SourceUser,
	}
}
