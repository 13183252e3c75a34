// Package binance adapts the Binance spot REST API (and Binance-compatible
// endpoints) to the venue.Client contract.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/venue"
)

// Config holds the adapter settings for one venue.
type Config struct {
	// ID is the venue identifier ("binance", "binanceus", ...). Several
	// Binance-compatible exchanges can be registered with different IDs and
	// base URLs.
	ID        string
	ApiKey    string
	ApiSecret string
	// BaseURL overrides the REST endpoint (testnet, regional mirrors).
	BaseURL string
	// WsURL overrides the websocket stream endpoint.
	WsURL string
}

// Venue implements venue.Client for Binance spot.
type Venue struct {
	cfg    Config
	client *binance.Client
	logger *slog.Logger
}

// New creates a Venue from the given config.
func New(cfg Config, logger *slog.Logger) *Venue {
	c := binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Venue{
		cfg:    cfg,
		client: c,
		logger: logger.With(slog.String("venue", cfg.ID)),
	}
}

// Name returns the venue identifier.
func (v *Venue) Name() string { return v.cfg.ID }

// exchangeSymbol converts "BTC/USDT" to Binance's "BTCUSDT" form.
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "/", "")
}

// LoadMarkets loads symbol metadata from the exchangeInfo endpoint and, when
// API credentials are present, per-symbol taker/maker fees from the trade-fee
// endpoint. Symbols are keyed in normalized BASE/QUOTE form.
func (v *Venue) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	info, err := v.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	fees := v.loadFees(ctx)

	markets := make(map[string]domain.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		normalized := s.BaseAsset + "/" + s.QuoteAsset
		m := domain.Market{
			Symbol: normalized,
			Active: s.Status == "TRADING",
		}
		m.MinCost, m.MaxCost = notionalLimits(s.Filters)
		if f, ok := fees[s.Symbol]; ok {
			m.MakerFee = f.maker
			m.TakerFee = f.taker
		}
		markets[normalized] = m
	}
	return markets, nil
}

type feePair struct{ maker, taker float64 }

// loadFees fetches the account trade fees. It is best-effort: without
// credentials (paper mode) the endpoint fails and the caller falls back to
// the configured default fee.
func (v *Venue) loadFees(ctx context.Context) map[string]feePair {
	if v.cfg.ApiKey == "" {
		return nil
	}
	details, err := v.client.NewTradeFeeService().Do(ctx)
	if err != nil {
		v.logger.Warn("trade fee fetch failed, using configured defaults",
			slog.String("error", err.Error()),
		)
		return nil
	}
	fees := make(map[string]feePair, len(details))
	for _, d := range details {
		fees[d.Symbol] = feePair{
			maker: parseFloat(d.MakerCommission),
			taker: parseFloat(d.TakerCommission),
		}
	}
	return fees
}

// notionalLimits extracts min/max order cost from the symbol filter list.
func notionalLimits(filters []map[string]interface{}) (minCost, maxCost float64) {
	for _, f := range filters {
		t, _ := f["filterType"].(string)
		if t != "NOTIONAL" && t != "MIN_NOTIONAL" {
			continue
		}
		if s, ok := f["minNotional"].(string); ok {
			minCost = parseFloat(s)
		}
		if s, ok := f["maxNotional"].(string); ok {
			maxCost = parseFloat(s)
		}
	}
	return minCost, maxCost
}

// FetchOrderBook returns a depth-limited snapshot, bids descending and asks
// ascending as delivered by the exchange.
func (v *Venue) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	if depth <= 0 {
		depth = 5
	}
	res, err := v.client.NewDepthService().Symbol(exchangeSymbol(symbol)).Limit(depth).Do(ctx)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}

	snap := domain.OrderbookSnapshot{
		Venue:     v.cfg.ID,
		Symbol:    symbol,
		Bids:      make([]domain.PriceLevel, 0, len(res.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(res.Asks)),
		FetchedAt: time.Now(),
	}
	for _, b := range res.Bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: parseFloat(b.Price), Size: parseFloat(b.Quantity)})
	}
	for _, a := range res.Asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: parseFloat(a.Price), Size: parseFloat(a.Quantity)})
	}
	return snap, nil
}

// FetchTicker returns the current best bid/ask and last trade price.
func (v *Venue) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	ex := exchangeSymbol(symbol)
	books, err := v.client.NewListBookTickersService().Symbol(ex).Do(ctx)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: book ticker %s: %w", symbol, err)
	}
	if len(books) == 0 {
		return domain.Ticker{}, fmt.Errorf("binance: book ticker %s: %w", symbol, domain.ErrNotFound)
	}

	t := domain.Ticker{
		Symbol: symbol,
		Bid:    parseFloat(books[0].BidPrice),
		Ask:    parseFloat(books[0].AskPrice),
		Time:   time.Now(),
	}
	if prices, err := v.client.NewListPricesService().Symbol(ex).Do(ctx); err == nil && len(prices) > 0 {
		t.Last = parseFloat(prices[0].Price)
	}
	return t, nil
}

// FetchBalance returns the spot account balances keyed by asset.
func (v *Venue) FetchBalance(ctx context.Context) (map[string]domain.AssetBalance, error) {
	acct, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}
	out := make(map[string]domain.AssetBalance, len(acct.Balances))
	for _, b := range acct.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		out[strings.ToUpper(b.Asset)] = domain.AssetBalance{
			Free:     free,
			Reserved: locked,
			Total:    free + locked,
		}
	}
	return out, nil
}

// CreateLimitOrder submits a GTC limit order and returns its order id.
func (v *Venue) CreateLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (string, error) {
	binSide := binance.SideTypeBuy
	if side == domain.OrderSideSell {
		binSide = binance.SideTypeSell
	}
	res, err := v.client.NewCreateOrderService().
		Symbol(exchangeSymbol(symbol)).
		Side(binSide).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(formatQty(quantity)).
		Price(formatPrice(price)).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("binance: create %s limit %s: %w", side, symbol, err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

// CreateMarketSellOrder submits a market sell and returns its order id.
func (v *Venue) CreateMarketSellOrder(ctx context.Context, symbol string, quantity float64) (string, error) {
	res, err := v.client.NewCreateOrderService().
		Symbol(exchangeSymbol(symbol)).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(formatQty(quantity)).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("binance: market sell %s: %w", symbol, err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

// FetchOrder returns the venue's view of a submitted order. Binance does not
// report fees on this endpoint; FeeCost stays zero and callers estimate fees
// from market metadata.
func (v *Venue) FetchOrder(ctx context.Context, symbol, orderID string) (domain.Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("binance: bad order id %q: %w", orderID, err)
	}
	o, err := v.client.NewGetOrderService().Symbol(exchangeSymbol(symbol)).OrderID(id).Do(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("binance: get order %s: %w", orderID, err)
	}

	filled := parseFloat(o.ExecutedQuantity)
	quoteFilled := parseFloat(o.CummulativeQuoteQuantity)
	out := domain.Order{
		ID:     orderID,
		Symbol: symbol,
		Filled: filled,
	}
	if filled > 0 {
		out.Average = quoteFilled / filled
	}
	switch o.Status {
	case binance.OrderStatusTypeFilled:
		out.Status = domain.OrderStatusClosed
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		out.Status = domain.OrderStatusCancelled
	default:
		out.Status = domain.OrderStatusOpen
	}
	return out, nil
}

// CancelOrder cancels an open order.
func (v *Venue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("binance: bad order id %q: %w", orderID, err)
	}
	if _, err := v.client.NewCancelOrderService().Symbol(exchangeSymbol(symbol)).OrderID(id).Do(ctx); err != nil {
		return fmt.Errorf("binance: cancel order %s: %w", orderID, err)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// formatQty renders a base-asset quantity with enough precision for the
// common spot step sizes.
func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', 6, 64)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 8, 64)
}

var _ venue.Client = (*Venue)(nil)
