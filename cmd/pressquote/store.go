package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/piwi3910/PressQuote/internal/config"
	"github.com/piwi3910/PressQuote/internal/importer"
	"github.com/piwi3910/PressQuote/internal/rates"
)

// rateWriter is a store that accepts imported rate sheets.
type rateWriter interface {
	ApplyImport(ctx context.Context, rows []rates.RateRow) (int, error)
}

// rateStore is the provider the configuration selects, plus what the
// commands need besides lookups.
type rateStore struct {
	provider rates.Provider
	writer   rateWriter                  // nil for the static store
	ping     func(context.Context) error // nil when there is nothing to check
	version  func(context.Context) (int64, error)
	cache    *rates.Cache
	closers  []func() error
}

func (s *rateStore) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openStore opens and migrates the configured rate store and wraps it in the
// badger cache when enabled.
func openStore(ctx context.Context, cfg config.Config, logger log.Logger) (*rateStore, error) {
	s := &rateStore{}

	switch cfg.Store.Kind {
	case config.StoreStatic:
		static := rates.NewStaticProvider()
		if cfg.Store.RatesFile != "" {
			rows, err := loadRateSheet(cfg.Store.RatesFile, logger)
			if err != nil {
				return nil, err
			}
			static.Apply(rows)
		}
		s.provider = static
		// The static store is never cached.
		return s, nil

	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store, err := rates.OpenSQLite(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.provider, s.writer, s.ping, s.version = store, store, store.Ping, store.Version

	case config.StorePostgres:
		store, err := rates.OpenPostgres(ctx, cfg.Store.PostgresDSN, rates.DefaultPostgresOptions(), logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.provider, s.writer, s.ping = store, store, store.Ping

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	if cfg.Cache.Enabled {
		db, err := rates.OpenBadger(cfg.Cache.Dir, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.cache = rates.NewCache(s.provider, db, cfg.Cache.TTL, logger)
		s.provider = s.cache
		level.Debug(logger).Log("msg", "rate cache enabled", "ttl", cfg.Cache.TTL, "in_memory", cfg.Cache.Dir == "")
	}
	return s, nil
}

// importRates writes a parsed rate sheet to the store and drops cached rates.
func (s *rateStore) importRates(ctx context.Context, rows []rates.RateRow) (int, error) {
	if s.writer == nil {
		return 0, errors.New("the static store is read-only; import into the sqlite or postgres store")
	}
	n, err := s.writer.ApplyImport(ctx, rows)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(); err != nil {
			return n, fmt.Errorf("imported %d rates but failed to clear the cache: %w", n, err)
		}
	}
	return n, nil
}

// loadRateSheet parses a CSV or Excel rate sheet. Warnings are logged; any
// row error rejects the whole sheet.
func loadRateSheet(path string, logger log.Logger) ([]rates.RateRow, error) {
	result := importer.Import(path)
	for _, w := range result.Warnings {
		level.Warn(logger).Log("msg", "rate sheet", "file", path, "warning", w)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("rate sheet %s has %d errors:\n  %s", path, len(result.Errors), strings.Join(result.Errors, "\n  "))
	}
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("rate sheet %s has no rates", path)
	}
	return result.Rows, nil
}
