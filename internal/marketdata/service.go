package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradesense/internal/cache"
)

var ErrUnavailable = errors.New("market data unavailable")

// ErrStaleQuote is returned where a live price is required but only a carried-over
// quote exists.
var ErrStaleQuote = fmt.Errorf("%w: quote is stale", ErrUnavailable)

const (
	freshKey = "market:overview:fresh"
	staleKey = "market:overview:stale"
)

// Service serves a merged quote snapshot from its providers through a two-tier cache:
// a short fresh window that skips upstream calls, and a longer stale window used when
// providers fail.
type Service struct {
	Providers []Provider
	Cache     cache.Store
	FreshTTL  time.Duration
	StaleTTL  time.Duration
	Timeout   time.Duration
	Logger    *zap.Logger

	Now func() time.Time
}

func (s *Service) Overview(ctx context.Context) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, ErrUnavailable
	}
	var snap Snapshot
	if found, err := cache.GetJSON(ctx, s.store(), freshKey, &snap); err == nil && found {
		return snap, nil
	} else if err != nil {
		s.warn("market cache read failed", err)
	}
	return s.Refresh(ctx)
}

// Refresh fetches from every provider regardless of the fresh window. Providers that
// fail are backfilled from the stale snapshot and flagged, but only with quotes fetched
// within the stale window.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, ErrUnavailable
	}
	var stale Snapshot
	hasStale, err := cache.GetJSON(ctx, s.store(), staleKey, &stale)
	if err != nil {
		s.warn("market cache read failed", err)
	}
	now := s.now()

	results, failed := s.fetchAll(ctx)
	if len(results) == 0 {
		if hasStale {
			if carried := s.carryOver(stale, nil, now); len(carried) > 0 {
				stale.Quotes = carried
				stale.Stale = true
				return stale, nil
			}
		}
		return Snapshot{}, ErrUnavailable
	}

	snap := Snapshot{AsOf: now}
	for _, qs := range results {
		for _, q := range qs {
			q.FetchedAt = now
			q.Stale = false
			snap.Quotes = append(snap.Quotes, q)
		}
	}
	if hasStale && len(failed) > 0 {
		if carried := s.carryOver(stale, failed, now); len(carried) > 0 {
			snap.Quotes = append(snap.Quotes, carried...)
			snap.Stale = true
		}
	}
	sort.Slice(snap.Quotes, func(i, j int) bool { return snap.Quotes[i].Symbol < snap.Quotes[j].Symbol })

	if err := cache.SetJSON(ctx, s.store(), freshKey, snap, s.freshTTL()); err != nil {
		s.warn("market cache write failed", err)
	}
	if err := cache.SetJSON(ctx, s.store(), staleKey, snap, s.staleTTL()); err != nil {
		s.warn("market cache write failed", err)
	}
	return snap, nil
}

// carryOver picks the stale quotes of the given sources (all sources when nil) that
// were fetched within the stale window. Rewriting the stale key keeps their original
// FetchedAt, so a provider that stays down ages out instead of being renewed.
func (s *Service) carryOver(stale Snapshot, sources map[string]struct{}, now time.Time) []Quote {
	cutoff := now.Add(-s.staleTTL())
	var out []Quote
	for _, q := range stale.Quotes {
		if sources != nil {
			if _, ok := sources[q.Source]; !ok {
				continue
			}
		}
		if q.FetchedAt.IsZero() || q.FetchedAt.Before(cutoff) {
			continue
		}
		q.Stale = true
		out = append(out, q)
	}
	return out
}

// Quote returns one symbol from the current overview.
func (s *Service) Quote(ctx context.Context, symbol string) (Quote, error) {
	snap, err := s.Overview(ctx)
	if err != nil {
		return Quote{}, err
	}
	q, ok := snap.Find(symbol)
	if !ok {
		return Quote{}, ErrUnavailable
	}
	return q, nil
}

func (s *Service) fetchAll(ctx context.Context) (map[string][]Quote, map[string]struct{}) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = map[string][]Quote{}
		failed  = map[string]struct{}{}
	)
	var g errgroup.Group
	for _, p := range s.Providers {
		if p == nil {
			continue
		}
		p := p
		g.Go(func() error {
			qs, err := p.Quotes(fctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(qs) == 0 {
				failed[p.Name()] = struct{}{}
				if err != nil && s.Logger != nil {
					s.Logger.Warn("market provider failed", zap.String("provider", p.Name()), zap.Error(err))
				}
				return nil
			}
			results[p.Name()] = qs
			return nil
		})
	}
	_ = g.Wait()
	return results, failed
}

func (s *Service) store() cache.Store {
	if s.Cache == nil {
		return noCache{}
	}
	return s.Cache
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noCache) Delete(context.Context, string) error { return nil }

func (s *Service) warn(msg string, err error) {
	if s.Logger != nil {
		s.Logger.Warn(msg, zap.Error(err))
	}
}

func (s *Service) freshTTL() time.Duration {
	if s.FreshTTL <= 0 {
		return 30 * time.Second
	}
	return s.FreshTTL
}

func (s *Service) staleTTL() time.Duration {
	if s.StaleTTL <= s.freshTTL() {
		return 10 * time.Minute
	}
	return s.StaleTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
