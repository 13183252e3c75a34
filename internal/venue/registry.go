package venue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/greentrades/arbot/internal/domain"
)

// marketLoadRetries is how many times LoadAll retries a venue's market
// metadata fetch before giving up on that venue.
const marketLoadRetries = 3

// Registry owns the connected venue clients and their loaded market
// metadata. It is the single venue-facing dependency for the scanner, the
// sizing engine and the executor.
type Registry struct {
	clients map[string]Client
	order   []string // venue ids in configuration order
	logger  *slog.Logger

	mu      sync.RWMutex
	markets map[string]map[string]domain.Market // venue -> symbol -> market

	// retryDelay is swapped for a no-op in tests.
	retryDelay func(attempt int) time.Duration
}

// NewRegistry creates a Registry for the given clients.
func NewRegistry(clients []Client, logger *slog.Logger) *Registry {
	r := &Registry{
		clients: make(map[string]Client, len(clients)),
		markets: make(map[string]map[string]domain.Market, len(clients)),
		logger:  logger.With(slog.String("component", "venue_registry")),
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
	for _, c := range clients {
		r.clients[c.Name()] = c
		r.order = append(r.order, c.Name())
	}
	return r
}

// LoadAll loads market metadata for every venue with retry. A venue whose
// metadata cannot be loaded is dropped from the registry; if no venue
// survives, LoadAll returns an error (configuration-class, fatal).
func (r *Registry) LoadAll(ctx context.Context) error {
	var alive []string
	for _, id := range r.order {
		c := r.clients[id]
		markets, err := r.loadWithRetry(ctx, c)
		if err != nil {
			r.logger.Error("venue market load failed, dropping venue",
				slog.String("venue", id),
				slog.String("error", err.Error()),
			)
			delete(r.clients, id)
			continue
		}
		r.mu.Lock()
		r.markets[id] = markets
		r.mu.Unlock()
		alive = append(alive, id)
		r.logger.Info("venue connected",
			slog.String("venue", id),
			slog.Int("markets", len(markets)),
		)
	}
	r.order = alive
	if len(alive) == 0 {
		return fmt.Errorf("venue: all venue connections failed")
	}
	return nil
}

func (r *Registry) loadWithRetry(ctx context.Context, c Client) (map[string]domain.Market, error) {
	var lastErr error
	for attempt := 0; attempt < marketLoadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay(attempt)):
			}
		}
		markets, err := c.LoadMarkets(ctx)
		if err == nil {
			return markets, nil
		}
		lastErr = err
		r.logger.Warn("load markets attempt failed",
			slog.String("venue", c.Name()),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return nil, lastErr
}

// Venues returns the connected venue ids in configuration order.
func (r *Registry) Venues() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Client returns the client for a venue id, or nil if unknown.
func (r *Registry) Client(venue string) Client {
	return r.clients[venue]
}

// Market returns the metadata for (venue, symbol) if loaded.
func (r *Registry) Market(venue, symbol string) (domain.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[venue][symbol]
	return m, ok
}

// FetchOrderBook forwards a depth-limited book fetch to the venue's client.
func (r *Registry) FetchOrderBook(ctx context.Context, venue, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	c := r.clients[venue]
	if c == nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("venue: unknown venue %q: %w", venue, domain.ErrNotFound)
	}
	return c.FetchOrderBook(ctx, symbol, depth)
}

// FetchBalance forwards a balance fetch to the venue's client.
func (r *Registry) FetchBalance(ctx context.Context, venue string) (map[string]domain.AssetBalance, error) {
	c := r.clients[venue]
	if c == nil {
		return nil, fmt.Errorf("venue: unknown venue %q: %w", venue, domain.ErrNotFound)
	}
	return c.FetchBalance(ctx)
}
