package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/piwi3910/PressQuote/internal/model"
)

type paperPrice struct {
	PaperType   string    `gorm:"column:paper_type;primaryKey;type:varchar(100)"`
	GrammageGSM float64   `gorm:"column:grammage_gsm;primaryKey"`
	Supplier    string    `gorm:"column:supplier;primaryKey;type:varchar(100)"`
	PricePerKg  float64   `gorm:"column:price_per_kg;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (paperPrice) TableName() string { return "paper_prices" }

type plateCost struct {
	Category  string    `gorm:"column:category;primaryKey;type:varchar(20)"`
	UnitCost  float64   `gorm:"column:unit_cost;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (plateCost) TableName() string { return "plate_costs" }

type inkRate struct {
	PlateCategory string    `gorm:"column:plate_category;primaryKey;type:varchar(20)"`
	InkCategory   string    `gorm:"column:ink_category;primaryKey;type:varchar(20)"`
	CostPerSheet  float64   `gorm:"column:cost_per_sheet;not null"`
	MinimumCost   float64   `gorm:"column:minimum_cost;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (inkRate) TableName() string { return "ink_rates" }

type finishRate struct {
	Kind         string    `gorm:"column:kind;primaryKey;type:varchar(20)"`
	Size         string    `gorm:"column:size;primaryKey;type:varchar(50)"`
	CostPerSheet float64   `gorm:"column:cost_per_sheet;not null"`
	MinimumCost  float64   `gorm:"column:minimum_cost;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (finishRate) TableName() string { return "finish_rates" }

// PostgresStore reads rates from the hosted database.
type PostgresStore struct {
	db     *gorm.DB
	logger log.Logger
}

// PostgresOptions controls connection retries.
type PostgresOptions struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{Attempts: 10, Backoff: 2 * time.Second}
}

// OpenPostgres connects to dsn, retrying while the database comes up.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions, logger log.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "postgres-rates")
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var lastErr error
	for i := 0; i < opts.Attempts; i++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			level.Info(logger).Log("msg", "connected to postgres", "attempt", i+1)
			return &PostgresStore{db: db, logger: logger}, nil
		}
		lastErr = err
		level.Warn(logger).Log("msg", "postgres connection failed", "attempt", i+1, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect postgres: %w", ctx.Err())
		case <-time.After(opts.Backoff):
		}
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", opts.Attempts, lastErr)
}

// Migrate creates or updates the rate tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&paperPrice{}, &plateCost{}, &inkRate{}, &finishRate{}); err != nil {
		return fmt.Errorf("auto migrate rate tables: %w", err)
	}
	level.Info(s.logger).Log("msg", "rate tables migrated")
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) PaperPricePerKg(ctx context.Context, key PaperKey) (float64, error) {
	var row paperPrice
	err := s.db.WithContext(ctx).
		Where("LOWER(paper_type) = ? AND grammage_gsm = ? AND LOWER(supplier) = ?",
			NormalizeKey(key.Type), key.GrammageGSM, NormalizeKey(key.Supplier)).
		First(&row).Error
	if err != nil {
		return 0, gormLookupErr(fmt.Sprintf("paper %s", key), err)
	}
	return row.PricePerKg, nil
}

func (s *PostgresStore) PlateUnitCost(ctx context.Context, category model.PlateCategory) (float64, error) {
	var row plateCost
	err := s.db.WithContext(ctx).Where("category = ?", string(category)).First(&row).Error
	if err != nil {
		return 0, gormLookupErr(fmt.Sprintf("plate %s", category), err)
	}
	return row.UnitCost, nil
}

func (s *PostgresStore) InkRate(ctx context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error) {
	var row inkRate
	err := s.db.WithContext(ctx).
		Where("plate_category = ? AND ink_category = ?", string(category), string(ink)).
		First(&row).Error
	if err != nil {
		return Rate{}, gormLookupErr(fmt.Sprintf("ink %s/%s", category, ink), err)
	}
	return Rate{CostPerSheet: row.CostPerSheet, MinimumCost: row.MinimumCost}, nil
}

func (s *PostgresStore) FinishRate(ctx context.Context, kind model.FinishKind, size string) (Rate, error) {
	var row finishRate
	err := s.db.WithContext(ctx).
		Where("kind = ? AND LOWER(size) = ?", string(kind), NormalizeKey(size)).
		First(&row).Error
	if err != nil {
		return Rate{}, gormLookupErr(fmt.Sprintf("%s %s", kind, size), err)
	}
	return Rate{CostPerSheet: row.CostPerSheet, MinimumCost: row.MinimumCost}, nil
}

// ApplyImport upserts every row in one transaction.
func (s *PostgresStore) ApplyImport(ctx context.Context, rows []RateRow) (int, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, r := range rows {
			record, err := gormRecord(r)
			if err != nil {
				return fmt.Errorf("row %d (%s %s): %w", i+1, r.Kind, r.Key, err)
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
				return fmt.Errorf("row %d (%s %s): %w", i+1, r.Kind, r.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import rates: %w", err)
	}
	level.Info(s.logger).Log("msg", "rates imported", "rows", len(rows))
	return len(rows), nil
}

// gormRecord converts an imported row into its table model.
func gormRecord(r RateRow) (any, error) {
	switch r.Kind {
	case KindPaper:
		return &paperPrice{PaperType: NormalizeKey(r.Key), GrammageGSM: r.GrammageGSM, Supplier: NormalizeKey(r.Supplier), PricePerKg: r.Price}, nil
	case KindPlate:
		return &plateCost{Category: r.Key, UnitCost: r.Price}, nil
	case KindInk:
		return &inkRate{PlateCategory: r.Key, InkCategory: string(r.Ink), CostPerSheet: r.Price, MinimumCost: r.Minimum}, nil
	case KindCoating:
		return &finishRate{Kind: string(model.FinishCoating), Size: NormalizeKey(r.Key), CostPerSheet: r.Price, MinimumCost: r.Minimum}, nil
	case KindSpotUV:
		return &finishRate{Kind: string(model.FinishSpotUV), Size: NormalizeKey(r.Key), CostPerSheet: r.Price, MinimumCost: r.Minimum}, nil
	default:
		return nil, fmt.Errorf("unknown rate kind %q", r.Kind)
	}
}

func gormLookupErr(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrRateNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}
