package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/greentrades/arbot/internal/domain"
)

// executePaper settles one opportunity against the simulated ledger with a
// realistic cost model: per-leg VWAP slippage, taker fees and a random
// partial fill.
func (e *Executor) executePaper(ctx context.Context, opp domain.Opportunity, res domain.TradeResult) domain.TradeResult {
	notional := opp.ProposedNotional
	if notional < e.strat.MinTradeNotional {
		return e.fail(res, fmt.Sprintf("%v: %.2f < %.2f", domain.ErrBelowMinimum, notional, e.strat.MinTradeNotional))
	}

	buyFeeRate := e.takerFee(opp.BuyVenue, opp.Symbol)
	sellFeeRate := e.takerFee(opp.SellVenue, opp.Symbol)

	walkQty := notional / opp.BuyPrice
	buySlip := e.legSlippage(ctx, opp.BuyVenue, opp.Symbol, domain.OrderSideBuy, walkQty)
	sellSlip := e.legSlippage(ctx, opp.SellVenue, opp.Symbol, domain.OrderSideSell, walkQty)

	// Effective prices carry the slippage; all profit math runs on them.
	effBuy := opp.BuyPrice * (1 + buySlip)
	effSell := opp.SellPrice * (1 - sellSlip)
	quantity := notional / effBuy

	gross := (effSell - effBuy) * quantity
	buyFee := notional * buyFeeRate
	sellFee := notional * sellFeeRate
	fees := buyFee + sellFee
	slippageCost := notional * (buySlip + sellSlip)
	net := gross - fees - slippageCost

	if net <= 0 && !e.strat.AllowNegativeTrades {
		return e.fail(res, fmt.Sprintf("unprofitable after costs: net %.4f", net))
	}

	// Partial fill in [0.95, 1.0] scales the ledger mutations and the filled
	// amounts only; the profit figures above describe the full-size trade.
	fill := e.fillFactor()
	filledQty := quantity * fill
	filledNotional := notional * fill

	quote := domain.SymbolQuote(opp.Symbol)
	base := domain.SymbolBase(opp.Symbol)

	// Four ledger legs, each applied exactly once. The quote outflow on the
	// buy venue carries all costs; the sell venue receives the effective
	// proceeds, so the total quote delta equals the fill-scaled net profit.
	e.book.ApplyDelta(ctx, opp.BuyVenue, quote, -(filledNotional + fill*(fees+slippageCost)))
	e.book.ApplyDelta(ctx, opp.BuyVenue, base, +filledQty)
	e.book.ApplyDelta(ctx, opp.SellVenue, base, -filledQty)
	e.book.ApplyDelta(ctx, opp.SellVenue, quote, +filledQty*effSell)

	res.Success = true
	res.FilledNotional = filledNotional
	res.FilledQuantity = filledQty
	res.BuyPrice = effBuy
	res.SellPrice = effSell
	res.GrossProfit = gross
	res.BuyFee = buyFee
	res.SellFee = sellFee
	res.Fees = fees
	res.SlippageCost = slippageCost
	res.NetProfit = net
	res.FillRate = fill

	e.recordSuccess(res)
	e.logger.Info("paper trade settled",
		slog.String("symbol", opp.Symbol),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.Float64("notional", notional),
		slog.Float64("net_profit", net),
	)
	return res
}

// legSlippage estimates one leg's slippage fraction by walking the cached
// book; without a usable book it falls back to the configured default.
func (e *Executor) legSlippage(ctx context.Context, venueID, symbol string, side domain.OrderSide, quantity float64) float64 {
	book := e.books.OrderBook(ctx, venueID, symbol)
	if book == nil {
		return e.strat.DefaultSlippage
	}
	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}
	return vwapSlippage(levels, quantity, e.strat.DefaultSlippage)
}

// vwapSlippage walks the book side accumulating size until the requested
// quantity is covered or the book is exhausted, then compares the resulting
// VWAP against the top of book. The result is capped at slippageCap.
func vwapSlippage(levels []domain.PriceLevel, quantity, fallback float64) float64 {
	if len(levels) == 0 || quantity <= 0 {
		return fallback
	}
	top := levels[0].Price
	if top <= 0 {
		return fallback
	}

	var cost, filled float64
	remaining := quantity
	for _, lvl := range levels {
		take := math.Min(lvl.Size, remaining)
		cost += take * lvl.Price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if filled <= 0 {
		return fallback
	}

	vwap := cost / filled
	slip := math.Abs(vwap-top) / top
	if slip > slippageCap {
		slip = slippageCap
	}
	return slip
}
