package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"
)

const barsPrefix = "bars"

// CachedBarSource caches another BarSource's responses for a fixed TTL.
// Cache failures fall through to the wrapped source.
type CachedBarSource struct {
	next  domrepo.BarSource
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedBarSource(next domrepo.BarSource, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedBarSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedBarSource{next: next, cache: c, ttl: ttl, l: l}
}

func (s *CachedBarSource) DailyBars(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	key := cache.GenerateKey(barsPrefix, string(domrepo.TFDaily), symbol, strconv.Itoa(n))
	return s.load(ctx, key, func() ([]models.Bar, error) {
		return s.next.DailyBars(ctx, symbol, n)
	})
}

func (s *CachedBarSource) IntradayBars(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Bar, error) {
	key := cache.GenerateKey(barsPrefix, string(tf), symbol, strconv.Itoa(n))
	return s.load(ctx, key, func() ([]models.Bar, error) {
		return s.next.IntradayBars(ctx, symbol, tf, n)
	})
}

func (s *CachedBarSource) load(ctx context.Context, key string, fetch func() ([]models.Bar, error)) ([]models.Bar, error) {
	var bars []models.Bar
	err := s.cache.Get(ctx, key, &bars)
	switch {
	case err == nil:
		return bars, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.l.Warn("bar cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	bars, err = fetch()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, key, bars, s.ttl); err != nil {
		s.l.Warn("bar cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return bars, nil
}

var _ domrepo.BarSource = (*CachedBarSource)(nil)
