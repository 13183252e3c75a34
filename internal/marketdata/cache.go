// Package marketdata caches order-book snapshots with a short TTL so one scan
// cycle never fetches the same (venue, symbol) book twice.
package marketdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/greentrades/arbot/internal/domain"
)

// Fetcher is the slice of the venue registry the cache pulls books through.
type Fetcher interface {
	FetchOrderBook(ctx context.Context, venue, symbol string, depth int) (domain.OrderbookSnapshot, error)
}

// Mirror receives every snapshot the cache stores. It is optional and
// best-effort, used to publish books to Redis for external observers.
type Mirror interface {
	MirrorBook(ctx context.Context, snap *domain.OrderbookSnapshot)
}

type bookKey struct {
	venue  string
	symbol string
}

type bookEntry struct {
	snap      *domain.OrderbookSnapshot
	fetchedAt time.Time
}

// Cache is a TTL cache of order-book snapshots. Entries arrive from two
// directions: on-demand REST fetches and websocket depth pushes via Put.
type Cache struct {
	fetcher Fetcher
	mirror  Mirror
	ttl     time.Duration
	depth   int
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	books map[bookKey]bookEntry
}

// New creates a cache fetching books at the given depth with the given TTL.
func New(fetcher Fetcher, ttl time.Duration, depth int, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		depth:   depth,
		logger:  logger.With(slog.String("component", "marketdata")),
		now:     time.Now,
		books:   make(map[bookKey]bookEntry),
	}
}

// SetMirror attaches an optional snapshot mirror. Call before use.
func (c *Cache) SetMirror(m Mirror) { c.mirror = m }

// OrderBook returns the cached snapshot for (venue, symbol), fetching a fresh
// one when the entry is missing or older than the TTL. A failed fetch returns
// nil; expired entries are never served stale.
func (c *Cache) OrderBook(ctx context.Context, venue, symbol string) *domain.OrderbookSnapshot {
	key := bookKey{venue: venue, symbol: symbol}

	c.mu.Lock()
	entry, ok := c.books[key]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.snap
	}
	c.mu.Unlock()

	fetched, err := c.fetcher.FetchOrderBook(ctx, venue, symbol, c.depth)
	if err != nil {
		c.logger.Warn("order book fetch failed",
			slog.String("venue", venue),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return nil
	}
	c.store(ctx, &fetched)
	return &fetched
}

// Put stores a snapshot pushed from a websocket depth feed.
func (c *Cache) Put(snap domain.OrderbookSnapshot) {
	c.store(context.Background(), &snap)
}

func (c *Cache) store(ctx context.Context, snap *domain.OrderbookSnapshot) {
	key := bookKey{venue: snap.Venue, symbol: snap.Symbol}
	c.mu.Lock()
	c.books[key] = bookEntry{snap: snap, fetchedAt: c.now()}
	c.mu.Unlock()

	if c.mirror != nil {
		c.mirror.MirrorBook(ctx, snap)
	}
}

// Prewarm refreshes every (venue, symbol) pair on a fixed interval until the
// context is cancelled. It runs one pass immediately so the first scan cycle
// finds warm books.
func (c *Cache) Prewarm(ctx context.Context, venues, symbols []string, interval time.Duration) {
	c.logger.Info("prewarm started",
		slog.Int("venues", len(venues)),
		slog.Int("symbols", len(symbols)),
		slog.Duration("interval", interval),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, venue := range venues {
			for _, symbol := range symbols {
				if ctx.Err() != nil {
					return
				}
				c.OrderBook(ctx, venue, symbol)
			}
		}
		select {
		case <-ctx.Done():
			c.logger.Info("prewarm stopped")
			return
		case <-ticker.C:
		}
	}
}
