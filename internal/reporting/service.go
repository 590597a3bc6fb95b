// Package reporting answers read-only aggregate queries over committed
// state. It never takes inventory locks; every query carries explicit date
// bounds and an explicit timezone, so results are reproducible.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/jcmexdev/orderledger/internal/pkg/cache"
	"github.com/jcmexdev/orderledger/internal/store"
)

// DefaultThreshold is the high-value-customer revenue cutoff ($500).
var DefaultThreshold = decimal.NewFromInt(500)

// DefaultCacheTTL keeps report answers hot briefly; reports are over
// committed history, so short staleness is acceptable.
const DefaultCacheTTL = 30 * time.Second

// ReportStore is the read-only slice of the persistence layer.
type ReportStore interface {
	DailyRevenueCents(ctx context.Context, start, end time.Time) (int64, error)
	TopProducts(ctx context.Context, start, end time.Time) ([]store.ProductSales, error)
	HighValueCustomers(ctx context.Context, start, end time.Time, thresholdCents int64) ([]store.CustomerRevenue, error)
}

// ProductSales is one ranked row of the top-selling-products report.
type ProductSales struct {
	ProductID string `json:"product_id"`
	Units     int64  `json:"units"`
}

// CustomerRevenue is one row of the high-value-customers report.
type CustomerRevenue struct {
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
}

// Service computes the three report shapes, optionally caching answers.
// The cache is nil-safe; singleflight keeps a cold key from stampeding the
// database under concurrent identical queries.
type Service struct {
	store ReportStore
	cache cache.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

// NewService builds a reporting service. c may be nil to disable caching.
func NewService(st ReportStore, c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{store: st, cache: c, ttl: ttl}
}

// DailyRevenue sums committed order totals for the calendar day containing
// day's year/month/day interpreted in loc. A day with no orders yields zero.
func (s *Service) DailyRevenue(ctx context.Context, day time.Time, loc *time.Location) (decimal.Decimal, error) {
	if loc == nil {
		return decimal.Zero, fmt.Errorf("reporting: timezone must be explicit")
	}

	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	key := fmt.Sprintf("daily-revenue:%04d-%02d-%02d:%s", y, m, d, loc.String())
	raw, err := s.cached(ctx, key, func() (any, error) {
		cents, err := s.store.DailyRevenueCents(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return store.DecimalFromCents(cents), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("reporting: unexpected cached revenue %T", raw)
	}
}

// TopProducts ranks products by units sold over the given month in loc,
// descending, ties broken by product id ascending.
func (s *Service) TopProducts(ctx context.Context, year int, month time.Month, loc *time.Location) ([]ProductSales, error) {
	if loc == nil {
		return nil, fmt.Errorf("reporting: timezone must be explicit")
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	key := fmt.Sprintf("top-products:%04d-%02d:%s", year, month, loc.String())
	raw, err := s.cached(ctx, key, func() (any, error) {
		rows, err := s.store.TopProducts(ctx, start, end)
		if err != nil {
			return nil, err
		}
		out := make([]ProductSales, len(rows))
		for i, r := range rows {
			out[i] = ProductSales{ProductID: r.ProductID, Units: r.Units}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []ProductSales:
		return v, nil
	case string:
		var out []ProductSales
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("reporting: decode cached top products: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("reporting: unexpected cached top products %T", raw)
	}
}

// HighValueCustomers returns customers whose committed order totals over the
// given month in loc exceed threshold. A zero threshold means the default.
func (s *Service) HighValueCustomers(ctx context.Context, year int, month time.Month, loc *time.Location, threshold decimal.Decimal) ([]CustomerRevenue, error) {
	if loc == nil {
		return nil, fmt.Errorf("reporting: timezone must be explicit")
	}
	if threshold.IsZero() {
		threshold = DefaultThreshold
	}
	thresholdCents, err := store.TotalCents(threshold)
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	// Threshold is part of the key: different cutoffs are different reports.
	key := fmt.Sprintf("high-value-customers:%04d-%02d:%s:%d", year, month, loc.String(), thresholdCents)
	raw, err := s.cached(ctx, key, func() (any, error) {
		rows, err := s.store.HighValueCustomers(ctx, start, end, thresholdCents)
		if err != nil {
			return nil, err
		}
		out := make([]CustomerRevenue, len(rows))
		for i, r := range rows {
			out[i] = CustomerRevenue{CustomerID: r.CustomerID, Total: r.Total()}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []CustomerRevenue:
		return v, nil
	case string:
		var out []CustomerRevenue
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("reporting: decode cached high value customers: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("reporting: unexpected cached high value customers %T", raw)
	}
}

// cached wraps compute with the cache-aside pattern plus singleflight.
// With no cache configured it degrades to a plain singleflight call.
func (s *Service) cached(ctx context.Context, key string, compute func() (any, error)) (any, error) {
	if s.cache != nil {
		cacheKey := s.cache.GenerateKey("reports", key)
		if hit, err := s.cache.Get(ctx, cacheKey); err != nil {
			slog.WarnContext(ctx, "report cache read failed", "key", cacheKey, "error", err)
		} else if hit != "" {
			return hit, nil
		}
	}

	raw, err, _ := s.sf.Do(key, func() (any, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if encoded, err := encodeForCache(v); err == nil {
				cacheKey := s.cache.GenerateKey("reports", key)
				if err := s.cache.Set(ctx, cacheKey, encoded, s.ttl); err != nil {
					slog.WarnContext(ctx, "report cache write failed", "key", cacheKey, "error", err)
				}
			}
		}
		return v, nil
	})
	return raw, err
}

func encodeForCache(v any) (string, error) {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
