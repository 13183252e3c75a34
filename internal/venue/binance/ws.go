package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greentrades/arbot/internal/domain"
)

const (
	defaultWsURL = "wss://stream.binance.com:9443"

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// BookSink receives depth snapshots from the stream. The market-data cache
// implements it.
type BookSink interface {
	Put(snap domain.OrderbookSnapshot)
}

// DepthFeed streams partial-depth snapshots for a symbol set over a single
// combined websocket connection and pushes them into a BookSink, keeping the
// market-data cache warm without REST polling. Run blocks until the context
// is cancelled and reconnects with exponential backoff on stream errors.
type DepthFeed struct {
	venueID string
	wsURL   string
	symbols []string
	sink    BookSink
	logger  *slog.Logger
}

// NewDepthFeed creates a feed for the given normalized symbols.
func NewDepthFeed(venueID, wsURL string, symbols []string, sink BookSink, logger *slog.Logger) *DepthFeed {
	if wsURL == "" {
		wsURL = defaultWsURL
	}
	return &DepthFeed{
		venueID: venueID,
		wsURL:   strings.TrimRight(wsURL, "/"),
		symbols: symbols,
		sink:    sink,
		logger:  logger.With(slog.String("component", "depth_feed"), slog.String("venue", venueID)),
	}
}

// streamURL builds the combined-stream URL for 20-level depth at 1s cadence.
func (f *DepthFeed) streamURL() string {
	parts := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		parts = append(parts, strings.ToLower(exchangeSymbol(s))+"@depth20@1000ms")
	}
	return f.wsURL + "/stream?streams=" + strings.Join(parts, "/")
}

// combinedMessage is the envelope of the combined stream.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthMessage is a partial book depth payload.
type depthMessage struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// Run connects and consumes the stream until ctx is cancelled.
func (f *DepthFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	delay := reconnectDelay
	for {
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("depth stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *DepthFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}
	defer conn.Close()
	f.logger.Info("depth stream connected", slog.Int("symbols", len(f.symbols)))

	// Close the connection when the context is cancelled so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("binance/ws: read: %w", err)
		}
		var env combinedMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			f.logger.Debug("bad stream message", slog.String("error", err.Error()))
			continue
		}
		symbol := f.symbolForStream(env.Stream)
		if symbol == "" {
			continue
		}
		var depth depthMessage
		if err := json.Unmarshal(env.Data, &depth); err != nil {
			continue
		}
		f.sink.Put(toSnapshot(f.venueID, symbol, depth))
	}
}

// symbolForStream maps "btcusdt@depth20@1000ms" back to the normalized symbol.
func (f *DepthFeed) symbolForStream(stream string) string {
	name, _, ok := strings.Cut(stream, "@")
	if !ok {
		return ""
	}
	for _, s := range f.symbols {
		if strings.ToLower(exchangeSymbol(s)) == name {
			return s
		}
	}
	return ""
}

func toSnapshot(venueID, symbol string, d depthMessage) domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		Venue:     venueID,
		Symbol:    symbol,
		Bids:      make([]domain.PriceLevel, 0, len(d.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(d.Asks)),
		FetchedAt: time.Now(),
	}
	for _, b := range d.Bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: parseFloat(b[0]), Size: parseFloat(b[1])})
	}
	for _, a := range d.Asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: parseFloat(a[0]), Size: parseFloat(a[1])})
	}
	return snap
}
