package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/greentrades/arbot/internal/domain"
)

// executeLive runs the two-leg live order state machine: limit buy, poll to
// fill, limit sell, poll to fill, with cancel-on-timeout and an emergency
// market liquidation when the sell leg strands the bought coins.
func (e *Executor) executeLive(ctx context.Context, opp domain.Opportunity, res domain.TradeResult) domain.TradeResult {
	notional := opp.ProposedNotional
	if notional < e.strat.MinTradeNotional {
		return e.fail(res, fmt.Sprintf("%v: %.2f < %.2f", domain.ErrBelowMinimum, notional, e.strat.MinTradeNotional))
	}

	buyClient := e.venues.Client(opp.BuyVenue)
	sellClient := e.venues.Client(opp.SellVenue)
	if buyClient == nil || sellClient == nil {
		return e.fail(res, fmt.Sprintf("venue client missing for %s/%s", opp.BuyVenue, opp.SellVenue))
	}

	if err := e.revalidateBalances(ctx, opp, notional); err != nil {
		return e.fail(res, err.Error())
	}

	quote := domain.SymbolQuote(opp.Symbol)
	base := domain.SymbolBase(opp.Symbol)
	quantity := notional / opp.BuyPrice

	// Buy leg.
	buyPrice := opp.BuyPrice * (1 + e.order.BuyPricePadding)
	buyID, err := buyClient.CreateLimitOrder(ctx, opp.Symbol, domain.OrderSideBuy, quantity, buyPrice)
	if err != nil {
		return e.fail(res, fmt.Sprintf("buy submit failed: %v", err))
	}
	res.BuyOrderID = buyID
	e.trackOrder(domain.OpenOrder{
		OrderID: buyID,
		Venue:   opp.BuyVenue,
		Side:    domain.OrderSideBuy,
		Symbol:  opp.Symbol,
		State:   domain.OrderStatePlaced,
	})

	buyOrder, filled := e.pollFill(ctx, buyClient, opp.Symbol, buyID)
	if !filled {
		e.cancelLeg(ctx, buyClient, opp.BuyVenue, opp.Symbol, buyID)
		return e.fail(res, "buy leg timed out")
	}
	e.dropOrder(buyID)

	filledQty := buyOrder.Filled
	if filledQty <= 0 {
		filledQty = quantity
	}
	buyAvg := buyOrder.Average
	if buyAvg <= 0 {
		buyAvg = buyPrice
	}
	buyFee := buyOrder.FeeCost
	if buyFee <= 0 {
		buyFee = filledQty * buyAvg * e.takerFee(opp.BuyVenue, opp.Symbol)
	}

	// Sell leg. From here on the coins are on the buy venue; any failure to
	// get the sell leg done must end in an emergency liquidation there.
	sellPrice := opp.SellPrice * (1 - e.order.SellPricePadding)
	sellID, err := sellClient.CreateLimitOrder(ctx, opp.Symbol, domain.OrderSideSell, filledQty, sellPrice)
	if err != nil {
		e.emergencyClose(ctx, opp, filledQty)
		res.Emergency = true
		return e.fail(res, fmt.Sprintf("sell submit failed: %v", err))
	}
	res.SellOrderID = sellID
	e.trackOrder(domain.OpenOrder{
		OrderID: sellID,
		Venue:   opp.SellVenue,
		Side:    domain.OrderSideSell,
		Symbol:  opp.Symbol,
		State:   domain.OrderStatePlaced,
	})

	sellOrder, filled := e.pollFill(ctx, sellClient, opp.Symbol, sellID)
	if !filled {
		e.cancelLeg(ctx, sellClient, opp.SellVenue, opp.Symbol, sellID)
		e.emergencyClose(ctx, opp, filledQty)
		res.Emergency = true
		return e.fail(res, "sell leg timed out, emergency liquidation attempted")
	}
	e.dropOrder(sellID)

	sellAvg := sellOrder.Average
	if sellAvg <= 0 {
		sellAvg = sellPrice
	}
	sellFee := sellOrder.FeeCost
	if sellFee <= 0 {
		sellFee = filledQty * sellAvg * e.takerFee(opp.SellVenue, opp.Symbol)
	}

	gross := (sellAvg - buyAvg) * filledQty
	fees := buyFee + sellFee
	net := gross - fees

	res.Success = true
	res.FilledQuantity = filledQty
	res.FilledNotional = filledQty * buyAvg
	res.BuyPrice = buyAvg
	res.SellPrice = sellAvg
	res.GrossProfit = gross
	res.BuyFee = buyFee
	res.SellFee = sellFee
	res.Fees = fees
	res.NetProfit = net
	res.FillRate = filledQty / quantity

	// Nudge the live ledger to re-fetch both venues.
	e.book.ApplyDelta(ctx, opp.BuyVenue, quote, -res.FilledNotional)
	e.book.ApplyDelta(ctx, opp.SellVenue, base, -filledQty)

	e.recordSuccess(res)
	if net <= 0 {
		e.logger.Warn("live trade filled at a loss",
			slog.String("symbol", opp.Symbol),
			slog.Float64("net_profit", net),
		)
	} else {
		e.logger.Info("live trade completed",
			slog.String("symbol", opp.Symbol),
			slog.Float64("notional", res.FilledNotional),
			slog.Float64("net_profit", net),
		)
	}
	return res
}

// revalidateBalances re-checks real venue balances just before submission:
// quote on the buy venue, base at quote value on the sell venue.
func (e *Executor) revalidateBalances(ctx context.Context, opp domain.Opportunity, notional float64) error {
	quote := domain.SymbolQuote(opp.Symbol)
	base := domain.SymbolBase(opp.Symbol)

	buyBal, err := e.venues.FetchBalance(ctx, opp.BuyVenue)
	if err != nil {
		return fmt.Errorf("executor: buy venue balance fetch: %w", err)
	}
	if free := buyBal[quote].Free; free < notional {
		return fmt.Errorf("executor: %w: %s %s free %.2f < %.2f", domain.ErrInsufficientBalance, opp.BuyVenue, quote, free, notional)
	}

	sellBal, err := e.venues.FetchBalance(ctx, opp.SellVenue)
	if err != nil {
		return fmt.Errorf("executor: sell venue balance fetch: %w", err)
	}
	if value := sellBal[base].Free * opp.SellPrice; value < notional {
		return fmt.Errorf("executor: %w: %s %s value %.2f < %.2f", domain.ErrInsufficientBalance, opp.SellVenue, base, value, notional)
	}
	return nil
}

// pollFill polls the order at a fixed interval until it closes or the fill
// timeout elapses.
func (e *Executor) pollFill(ctx context.Context, c clientLike, symbol, orderID string) (domain.Order, bool) {
	timeout := time.Duration(e.order.FillTimeoutSec * float64(time.Second))
	interval := time.Duration(e.order.PollIntervalMs) * time.Millisecond
	deadline := e.now().Add(timeout)

	var last domain.Order
	for {
		ord, err := c.FetchOrder(ctx, symbol, orderID)
		if err != nil {
			e.logger.Warn("order poll failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		} else {
			last = ord
			if ord.Status == domain.OrderStatusClosed {
				return ord, true
			}
		}
		if ctx.Err() != nil || !e.now().Before(deadline) {
			return last, false
		}
		e.sleep(ctx, interval)
	}
}

// cancelLeg cancels a timed-out order and stops tracking it.
func (e *Executor) cancelLeg(ctx context.Context, c clientLike, venueID, symbol, orderID string) {
	if err := c.CancelOrder(ctx, symbol, orderID); err != nil {
		e.logger.Error("timed-out order cancel failed",
			slog.String("venue", venueID),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
	e.dropOrder(orderID)
}

// emergencyClose market-sells the stranded quantity on the venue the coins
// were acquired on. Its own failure is logged, never retried.
func (e *Executor) emergencyClose(ctx context.Context, opp domain.Opportunity, quantity float64) {
	c := e.venues.Client(opp.BuyVenue)
	if c == nil {
		e.logger.Error("emergency close impossible, no client",
			slog.String("venue", opp.BuyVenue),
		)
		return
	}
	orderID, err := c.CreateMarketSellOrder(ctx, opp.Symbol, quantity)
	if err != nil {
		e.logger.Error("emergency market sell failed",
			slog.String("venue", opp.BuyVenue),
			slog.String("symbol", opp.Symbol),
			slog.Float64("quantity", quantity),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Warn("emergency market sell submitted",
		slog.String("venue", opp.BuyVenue),
		slog.String("symbol", opp.Symbol),
		slog.String("order_id", orderID),
		slog.Float64("quantity", quantity),
	)
}

// clientLike is the order-lifecycle subset of venue.Client used by the poll
// and cancel helpers.
type clientLike interface {
	FetchOrder(ctx context.Context, symbol, orderID string) (domain.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
