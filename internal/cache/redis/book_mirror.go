package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greentrades/arbot/internal/domain"
)

// mirrorTTL keeps mirrored books from outliving their usefulness when the
// bot stops publishing.
const mirrorTTL = 30 * time.Second

// BookMirror publishes cached order-book snapshots to Redis so external
// observers (dashboards, ad-hoc tooling) can read the bot's market view
// without touching the venues. It plugs into the market-data cache as its
// optional mirror.
type BookMirror struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewBookMirror creates a BookMirror backed by the given Client.
func NewBookMirror(c *Client, logger *slog.Logger) *BookMirror {
	return &BookMirror{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "book_mirror")),
	}
}

func bookKey(venueID, symbol string) string {
	return fmt.Sprintf("book:%s:%s", venueID, symbol)
}

// MirrorBook writes one snapshot. Publishing is best-effort; failures are
// logged at debug level and never surface to the caller.
func (m *BookMirror) MirrorBook(ctx context.Context, snap *domain.OrderbookSnapshot) {
	if snap == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		m.logger.Debug("book marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := m.rdb.Set(ctx, bookKey(snap.Venue, snap.Symbol), payload, mirrorTTL).Err(); err != nil {
		m.logger.Debug("book mirror write failed",
			slog.String("venue", snap.Venue),
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// ReadBook fetches a mirrored snapshot, mainly for tooling and tests.
func (m *BookMirror) ReadBook(ctx context.Context, venueID, symbol string) (*domain.OrderbookSnapshot, error) {
	raw, err := m.rdb.Get(ctx, bookKey(venueID, symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: read book %s/%s: %w", venueID, symbol, err)
	}
	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("redis: decode book %s/%s: %w", venueID, symbol, err)
	}
	return &snap, nil
}
