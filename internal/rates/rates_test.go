package rates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/model"
)

var artCard = PaperKey{Type: "art card", GrammageGSM: 260, Supplier: "acme"}

func TestStaticProvider_Lookups(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider().
		SetPaper(artCard, 32.5).
		SetPlate(model.PlateSmall, 350).
		SetInk(model.PlateSmall, model.InkNormal, Rate{CostPerSheet: 0.2, MinimumCost: 400}).
		SetFinish(model.FinishCoating, "medium", Rate{CostPerSheet: 0.5, MinimumCost: 500})

	price, err := p.PaperPricePerKg(ctx, artCard)
	require.NoError(t, err)
	assert.Equal(t, 32.5, price)

	plate, err := p.PlateUnitCost(ctx, model.PlateSmall)
	require.NoError(t, err)
	assert.Equal(t, 350.0, plate)

	ink, err := p.InkRate(ctx, model.PlateSmall, model.InkNormal)
	require.NoError(t, err)
	assert.Equal(t, Rate{CostPerSheet: 0.2, MinimumCost: 400}, ink)

	coat, err := p.FinishRate(ctx, model.FinishCoating, "medium")
	require.NoError(t, err)
	assert.Equal(t, 500.0, coat.MinimumCost)
}

func TestStaticProvider_MissingRatesWrapSentinel(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider()

	_, err := p.PaperPricePerKg(ctx, artCard)
	assert.ErrorIs(t, err, ErrRateNotFound)
	assert.Contains(t, err.Error(), "art card/260gsm/acme")

	_, err = p.PlateUnitCost(ctx, model.PlateLarge)
	assert.ErrorIs(t, err, ErrRateNotFound)

	_, err = p.InkRate(ctx, model.PlateLarge, model.InkBase)
	assert.ErrorIs(t, err, ErrRateNotFound)

	_, err = p.FinishRate(ctx, model.FinishSpotUV, "large")
	assert.ErrorIs(t, err, ErrRateNotFound)
}

func TestStaticProvider_Apply(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider().Apply([]RateRow{
		{Kind: KindPaper, Key: "art card", GrammageGSM: 260, Supplier: "acme", Price: 30},
		{Kind: KindPlate, Key: "large", Price: 650},
		{Kind: KindInk, Key: "large", Ink: model.InkBase, Price: 0.4, Minimum: 900},
		{Kind: KindSpotUV, Key: "small", Price: 0.9, Minimum: 1100},
	})

	price, err := p.PaperPricePerKg(ctx, artCard)
	require.NoError(t, err)
	assert.Equal(t, 30.0, price)

	plate, err := p.PlateUnitCost(ctx, model.PlateLarge)
	require.NoError(t, err)
	assert.Equal(t, 650.0, plate)

	ink, err := p.InkRate(ctx, model.PlateLarge, model.InkBase)
	require.NoError(t, err)
	assert.Equal(t, 900.0, ink.MinimumCost)

	uv, err := p.FinishRate(ctx, model.FinishSpotUV, "small")
	require.NoError(t, err)
	assert.Equal(t, 0.9, uv.CostPerSheet)
}

func TestStaticProvider_KeysIgnoreCaseAndSpace(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider().Apply([]RateRow{
		{Kind: KindPaper, Key: "Art Card", GrammageGSM: 260, Supplier: "ACME", Price: 30},
		{Kind: KindCoating, Key: "Medium ", Price: 0.5, Minimum: 500},
	})

	price, err := p.PaperPricePerKg(ctx, artCard)
	require.NoError(t, err)
	assert.Equal(t, 30.0, price)

	price, err = p.PaperPricePerKg(ctx, PaperKey{Type: " art CARD", GrammageGSM: 260, Supplier: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, price)

	coat, err := p.FinishRate(ctx, model.FinishCoating, "medium")
	require.NoError(t, err)
	assert.Equal(t, 500.0, coat.MinimumCost)

	_, err = p.PaperPricePerKg(ctx, PaperKey{Type: "art card", GrammageGSM: 250, Supplier: "acme"})
	assert.ErrorIs(t, err, ErrRateNotFound, "grammage is still part of the key")
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "art card", NormalizeKey("  Art Card "))
	assert.Equal(t, "", NormalizeKey("   "))
	assert.Equal(t, PaperKey{Type: "gloss", GrammageGSM: 128, Supplier: "north"},
		PaperKey{Type: "GLOSS", GrammageGSM: 128, Supplier: " North"}.Normalized())
}

func TestParseRowKind(t *testing.T) {
	tests := []struct {
		in   string
		want RowKind
		ok   bool
	}{
		{"paper", KindPaper, true},
		{" Plate ", KindPlate, true},
		{"INK", KindInk, true},
		{"varnish", KindCoating, true},
		{"Spot UV", KindSpotUV, true},
		{"lamination", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRowKind(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
