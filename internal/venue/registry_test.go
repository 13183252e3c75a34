package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrades/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClient fails LoadMarkets failures times before succeeding.
type stubClient struct {
	name      string
	failures  int
	loadCalls int
	markets   map[string]domain.Market
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) LoadMarkets(context.Context) (map[string]domain.Market, error) {
	s.loadCalls++
	if s.loadCalls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.markets, nil
}

func (s *stubClient) FetchOrderBook(context.Context, string, int) (domain.OrderbookSnapshot, error) {
	return domain.OrderbookSnapshot{Venue: s.name}, nil
}

func (s *stubClient) FetchTicker(context.Context, string) (domain.Ticker, error) {
	return domain.Ticker{}, nil
}

func (s *stubClient) FetchBalance(context.Context) (map[string]domain.AssetBalance, error) {
	return nil, nil
}

func (s *stubClient) CreateLimitOrder(context.Context, string, domain.OrderSide, float64, float64) (string, error) {
	return "", errors.New("not supported")
}

func (s *stubClient) CreateMarketSellOrder(context.Context, string, float64) (string, error) {
	return "", errors.New("not supported")
}

func (s *stubClient) FetchOrder(context.Context, string, string) (domain.Order, error) {
	return domain.Order{}, errors.New("not supported")
}

func (s *stubClient) CancelOrder(context.Context, string, string) error { return nil }

func newTestRegistry(clients ...Client) *Registry {
	r := NewRegistry(clients, testLogger())
	r.retryDelay = func(int) time.Duration { return 0 }
	return r
}

func TestLoadAllRetriesThenSucceeds(t *testing.T) {
	c := &stubClient{name: "a", failures: 2, markets: map[string]domain.Market{
		"BTC/USDT": {Symbol: "BTC/USDT", Active: true},
	}}
	r := newTestRegistry(c, &stubClient{name: "b"})

	require.NoError(t, r.LoadAll(context.Background()))
	assert.Equal(t, 3, c.loadCalls)
	assert.Equal(t, []string{"a", "b"}, r.Venues())

	m, ok := r.Market("a", "BTC/USDT")
	assert.True(t, ok)
	assert.True(t, m.Active)
}

func TestLoadAllDropsDeadVenue(t *testing.T) {
	dead := &stubClient{name: "dead", failures: 99}
	r := newTestRegistry(dead, &stubClient{name: "alive"})

	require.NoError(t, r.LoadAll(context.Background()))
	assert.Equal(t, []string{"alive"}, r.Venues())
	assert.Nil(t, r.Client("dead"))

	_, err := r.FetchOrderBook(context.Background(), "dead", "BTC/USDT", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadAllFatalWhenAllVenuesFail(t *testing.T) {
	r := newTestRegistry(&stubClient{name: "a", failures: 99}, &stubClient{name: "b", failures: 99})
	assert.Error(t, r.LoadAll(context.Background()))
}

func TestMarketUnknownVenue(t *testing.T) {
	r := newTestRegistry(&stubClient{name: "a"})
	_, ok := r.Market("nope", "BTC/USDT")
	assert.False(t, ok)
}
