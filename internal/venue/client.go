// Package venue defines the exchange-client capability contract the rest of
// the bot consumes, and a registry that owns the connected clients and their
// market metadata.
package venue

import (
	"context"

	"github.com/greentrades/arbot/internal/domain"
)

// Client is the capability contract for one trading venue. Implementations
// wrap a concrete exchange API; everything above this interface is
// venue-agnostic. Symbols are passed in BASE/QUOTE form ("BTC/USDT") and
// translated by the adapter.
type Client interface {
	// Name returns the venue identifier used as the ledger/cache key.
	Name() string

	// LoadMarkets fetches metadata (fees, order-cost limits, active flag)
	// for all tradable symbols, keyed by normalized symbol.
	LoadMarkets(ctx context.Context) (map[string]domain.Market, error)

	// FetchOrderBook returns a depth-limited snapshot of the book.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error)

	// FetchTicker returns the current top-of-book quote.
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)

	// FetchBalance returns the per-asset free/reserved/total balances.
	FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error)

	// CreateLimitOrder submits a limit order and returns its venue order id.
	CreateLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (string, error)

	// CreateMarketSellOrder submits a market sell for the given base-asset
	// quantity and returns its venue order id.
	CreateMarketSellOrder(ctx context.Context, symbol string, quantity float64) (string, error)

	// FetchOrder returns the venue's view of a submitted order.
	FetchOrder(ctx context.Context, symbol, orderID string) (domain.Order, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
