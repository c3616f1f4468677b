package rates

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/piwi3910/PressQuote/internal/model"
)

func TestGormRecord(t *testing.T) {
	rec, err := gormRecord(RateRow{Kind: KindPaper, Key: " Art Card ", GrammageGSM: 260, Supplier: "ACME", Price: 31})
	require.NoError(t, err)
	assert.Equal(t, &paperPrice{PaperType: "art card", GrammageGSM: 260, Supplier: "acme", PricePerKg: 31}, rec)

	rec, err = gormRecord(RateRow{Kind: KindInk, Key: "large", Ink: model.InkBase, Price: 0.4, Minimum: 800})
	require.NoError(t, err)
	assert.Equal(t, &inkRate{PlateCategory: "large", InkCategory: "base", CostPerSheet: 0.4, MinimumCost: 800}, rec)

	rec, err = gormRecord(RateRow{Kind: KindSpotUV, Key: "Small", Price: 0.8, Minimum: 1000})
	require.NoError(t, err)
	assert.Equal(t, "spot_uv", rec.(*finishRate).Kind)
	assert.Equal(t, "small", rec.(*finishRate).Size)

	_, err = gormRecord(RateRow{Kind: "lamination"})
	assert.Error(t, err)
}

func TestGormLookupErr(t *testing.T) {
	err := gormLookupErr("plate small", gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrRateNotFound)

	err = gormLookupErr("plate small", errors.New("connection reset"))
	assert.NotErrorIs(t, err, ErrRateNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestOpenPostgres_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenPostgres(ctx, "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1",
		PostgresOptions{Attempts: 3, Backoff: time.Minute}, nil)
	require.Error(t, err)
}

// TestPostgresStore_RoundTrip needs a live database.
func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("PRESSQUOTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRESSQUOTE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := OpenPostgres(ctx, dsn, PostgresOptions{Attempts: 1}, nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	_, err = store.ApplyImport(ctx, []RateRow{
		{Kind: KindPaper, Key: "art card", GrammageGSM: 260, Supplier: "acme", Price: 31},
		{Kind: KindPlate, Key: "small", Price: 350},
		{Kind: KindCoating, Key: "medium", Price: 0.5, Minimum: 500},
	})
	require.NoError(t, err)

	price, err := store.PaperPricePerKg(ctx, PaperKey{Type: "Art Card", GrammageGSM: 260, Supplier: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, 31.0, price)

	coat, err := store.FinishRate(ctx, model.FinishCoating, "medium")
	require.NoError(t, err)
	assert.Equal(t, 500.0, coat.MinimumCost)

	_, err = store.InkRate(ctx, model.PlateLarge, model.InkBase)
	assert.ErrorIs(t, err, ErrRateNotFound)
}
