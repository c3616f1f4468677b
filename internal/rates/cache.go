package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/piwi3910/PressQuote/internal/model"
)

// DefaultCacheTTL is how long a resolved rate is served from the cache.
const DefaultCacheTTL = 10 * time.Minute

// OpenBadger opens the cache database in dir. An empty dir keeps it in memory.
func OpenBadger(dir string, logger log.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger == nil {
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(badgerLogger{log.With(logger, "component", "badger")})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// Cache serves rates from badger and asks the wrapped provider on a miss.
// Only successful lookups are stored; a missing rate is asked for again.
type Cache struct {
	next   Provider
	db     *badger.DB
	ttl    time.Duration
	logger log.Logger
}

func NewCache(next Provider, db *badger.DB, ttl time.Duration, logger log.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Cache{next: next, db: db, ttl: ttl, logger: log.With(logger, "component", "rate-cache")}
}

func (c *Cache) PaperPricePerKg(ctx context.Context, key PaperKey) (float64, error) {
	k := cacheKey("paper", NormalizeKey(key.Type), fmt.Sprintf("%g", key.GrammageGSM), NormalizeKey(key.Supplier))
	var v float64
	if c.get(k, &v) {
		return v, nil
	}
	v, err := c.next.PaperPricePerKg(ctx, key)
	if err != nil {
		return 0, err
	}
	c.put(k, v)
	return v, nil
}

func (c *Cache) PlateUnitCost(ctx context.Context, category model.PlateCategory) (float64, error) {
	k := cacheKey("plate", string(category))
	var v float64
	if c.get(k, &v) {
		return v, nil
	}
	v, err := c.next.PlateUnitCost(ctx, category)
	if err != nil {
		return 0, err
	}
	c.put(k, v)
	return v, nil
}

func (c *Cache) InkRate(ctx context.Context, category model.PlateCategory, ink model.InkCategory) (Rate, error) {
	k := cacheKey("ink", string(category), string(ink))
	var r Rate
	if c.get(k, &r) {
		return r, nil
	}
	r, err := c.next.InkRate(ctx, category, ink)
	if err != nil {
		return Rate{}, err
	}
	c.put(k, r)
	return r, nil
}

func (c *Cache) FinishRate(ctx context.Context, kind model.FinishKind, size string) (Rate, error) {
	k := cacheKey("finish", string(kind), NormalizeKey(size))
	var r Rate
	if c.get(k, &r) {
		return r, nil
	}
	r, err := c.next.FinishRate(ctx, kind, size)
	if err != nil {
		return Rate{}, err
	}
	c.put(k, r)
	return r, nil
}

// Invalidate drops every cached rate.
func (c *Cache) Invalidate() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("drop cached rates: %w", err)
	}
	return nil
}

func cacheKey(parts ...string) []byte {
	return []byte("rate/" + strings.Join(parts, "/"))
}

// get decodes a cached value into dst. Read errors count as a miss.
func (c *Cache) get(key []byte, dst any) bool {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			level.Warn(c.logger).Log("msg", "cache read failed", "key", string(key), "err", err)
		}
		return false
	}
	return true
}

func (c *Cache) put(key []byte, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		level.Warn(c.logger).Log("msg", "cache encode failed", "key", string(key), "err", err)
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(c.ttl))
	})
	if err != nil {
		level.Warn(c.logger).Log("msg", "cache write failed", "key", string(key), "err", err)
	}
}

// badgerLogger adapts go-kit/log to badger.Logger.
type badgerLogger struct {
	logger log.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	level.Error(b.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	level.Warn(b.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Infof(format string, args ...any) {
	level.Info(b.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	level.Debug(b.logger).Log("msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
}
