package rates

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/piwi3910/PressQuote/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	sqliteDriver  = "sqlite"
	sqliteDialect = "sqlite3"
	migrationsDir = "migrations"
)

// SQLiteStore is the local rate store.
type SQLiteStore struct {
	db     *sql.DB
	logger log.Logger
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OpenSQLite opens the database at path, sets pragmas and validates connectivity.
// It does not run migrations.
func OpenSQLite(path string, logger log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &SQLiteStore{db: db, logger: log.With(logger, "component", "sqlite-rates")}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs all pending embedded migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, migrationsDir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) PaperPricePerKg(ctx context.Context, key PaperKey) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx,
		`SELECT price_per_kg FROM paper_prices WHERE paper_type = ? AND grammage_gsm = ? AND supplier = ?`,
		NormalizeKey(key.Type), key.GrammageGSM, NormalizeKey(key.Supplier),
	).Scan(&price)
	if err != nil {
		return 0, lookupErr(fmt.Sprintf("paper %s", key), err)
	}
	return price, nil
}

func (s *SQLiteStore) PlateUnitCost(ctx context.Context, category model.PlateCategory) (float64, error) {
	var cost float64
	err := s.db.QueryRowContext(ctx,
		`SELECT unit_cost FROM plate_costs WHERE category = ?`, string(category),
	).Scan(&cost)
	if err != nil {
		return 0, lookupErr(fmt.Sprintf("plate %s", category), err)
	}
	return cost, nil
}

func (s *SQLiteStore) InkRate(ctx context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error) {
	var r Rate
	err := s.db.QueryRowContext(ctx,
		`SELECT cost_per_sheet, minimum_cost FROM ink_rates WHERE plate_category = ? AND ink_category = ?`,
		string(category), string(ink),
	).Scan(&r.CostPerSheet, &r.MinimumCost)
	if err != nil {
		return Rate{}, lookupErr(fmt.Sprintf("ink %s/%s", category, ink), err)
	}
	return r, nil
}

func (s *SQLiteStore) FinishRate(ctx context.Context, kind model.FinishKind, size string) (Rate, error) {
	var r Rate
	err := s.db.QueryRowContext(ctx,
		`SELECT cost_per_sheet, minimum_cost FROM finish_rates WHERE kind = ? AND size = ?`,
		string(kind), NormalizeKey(size),
	).Scan(&r.CostPerSheet, &r.MinimumCost)
	if err != nil {
		return Rate{}, lookupErr(fmt.Sprintf("%s %s", kind, size), err)
	}
	return r, nil
}

// lookupErr maps sql.ErrNoRows to ErrRateNotFound.
func lookupErr(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrRateNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// ApplyImport writes imported rows in a single transaction. Either every row
// is stored or none is.
func (s *SQLiteStore) ApplyImport(ctx context.Context, rows []RateRow) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import transaction: %w", err)
	}

	for i, r := range rows {
		if err := applyRow(ctx, tx, r); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("row %d (%s %s): %w", i+1, r.Kind, r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import transaction: %w", err)
	}

	level.Info(s.logger).Log("msg", "rates imported", "rows", len(rows))
	return len(rows), nil
}

func applyRow(ctx context.Context, db execer, r RateRow) error {
	rate := Rate{CostPerSheet: r.Price, MinimumCost: r.Minimum}
	switch r.Kind {
	case KindPaper:
		return upsertPaper(ctx, db, PaperKey{Type: r.Key, GrammageGSM: r.GrammageGSM, Supplier: r.Supplier}, r.Price)
	case KindPlate:
		return upsertPlate(ctx, db, model.PlateCategory(r.Key), r.Price)
	case KindInk:
		return upsertInk(ctx, db, model.PlateCategory(r.Key), r.Ink, rate)
	case KindCoating:
		return upsertFinish(ctx, db, model.FinishCoating, r.Key, rate)
	case KindSpotUV:
		return upsertFinish(ctx, db, model.FinishSpotUV, r.Key, rate)
	default:
		return fmt.Errorf("unknown rate kind %q", r.Kind)
	}
}

func upsertPaper(ctx context.Context, db execer, key PaperKey, pricePerKg float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO paper_prices (paper_type, grammage_gsm, supplier, price_per_kg)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (paper_type, grammage_gsm, supplier)
		DO UPDATE SET price_per_kg = excluded.price_per_kg, updated_at = CURRENT_TIMESTAMP`,
		NormalizeKey(key.Type), key.GrammageGSM, NormalizeKey(key.Supplier), pricePerKg)
	if err != nil {
		return fmt.Errorf("upsert paper %s: %w", key, err)
	}
	return nil
}

func upsertPlate(ctx context.Context, db execer, category model.PlateCategory, unitCost float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO plate_costs (category, unit_cost)
		VALUES (?, ?)
		ON CONFLICT (category)
		DO UPDATE SET unit_cost = excluded.unit_cost, updated_at = CURRENT_TIMESTAMP`,
		string(category), unitCost)
	if err != nil {
		return fmt.Errorf("upsert plate %s: %w", category, err)
	}
	return nil
}

func upsertInk(ctx context.Context, db execer, category model.PlateCategory, ink model.InkCategory, r Rate) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ink_rates (plate_category, ink_category, cost_per_sheet, minimum_cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (plate_category, ink_category)
		DO UPDATE SET cost_per_sheet = excluded.cost_per_sheet,
		              minimum_cost = excluded.minimum_cost,
		              updated_at = CURRENT_TIMESTAMP`,
		string(category), string(ink), r.CostPerSheet, r.MinimumCost)
	if err != nil {
		return fmt.Errorf("upsert ink %s/%s: %w", category, ink, err)
	}
	return nil
}

func upsertFinish(ctx context.Context, db execer, kind model.FinishKind, size string, r Rate) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO finish_rates (kind, size, cost_per_sheet, minimum_cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, size)
		DO UPDATE SET cost_per_sheet = excluded.cost_per_sheet,
		              minimum_cost = excluded.minimum_cost,
		              updated_at = CURRENT_TIMESTAMP`,
		string(kind), NormalizeKey(size), r.CostPerSheet, r.MinimumCost)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, size, err)
	}
	return nil
}

// gooseLogger routes goose output through the go-kit logger.
type gooseLogger struct {
	logger log.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	level.Info(g.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	level.Error(g.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
}
