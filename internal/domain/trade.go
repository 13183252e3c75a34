package domain

import (
	"context"
	"time"
)

// Mode selects how the executor settles trades.
type Mode string

const (
	// ModePaper settles trades against the simulated ledger.
	ModePaper Mode = "paper"
	// ModeLive submits real paired orders to the venues.
	ModeLive Mode = "live"
)

// Valid reports whether m is a known execution mode.
func (m Mode) Valid() bool { return m == ModePaper || m == ModeLive }

// TradeResult is the uniform record produced by one execution attempt in
// either mode. It is immutable after creation.
type TradeResult struct {
	ID             string
	Success        bool
	Mode           Mode
	Symbol         string
	BuyVenue       string
	SellVenue      string
	FilledNotional float64 // quote-asset size actually filled
	FilledQuantity float64 // base-asset quantity actually filled
	BuyPrice       float64 // effective (slippage-adjusted or average fill) price
	SellPrice      float64
	SpreadPercent  float64
	GrossProfit    float64
	BuyFee         float64
	SellFee        float64
	Fees           float64
	SlippageCost   float64
	NetProfit      float64
	FillRate       float64 // fraction of the requested size that filled

	// Live-mode only.
	BuyOrderID  string
	SellOrderID string
	// Emergency marks the partial-arbitrage failure path: the buy leg filled
	// but the sell leg did not and an emergency liquidation was attempted.
	Emergency bool

	Error      string
	ExecutedAt time.Time
}

// TradeStats are the executor's process-lifetime running totals.
type TradeStats struct {
	TotalTrades      int
	SuccessfulTrades int
	FailedTrades     int
	GrossProfit      float64
	Fees             float64
	SlippageCost     float64
	NetProfit        float64
}

// SuccessRate returns the fraction of attempts that succeeded, in percent.
func (s TradeStats) SuccessRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.SuccessfulTrades) / float64(s.TotalTrades) * 100
}

// AvgNetProfit returns the mean net profit per successful trade.
func (s TradeStats) AvgNetProfit() float64 {
	if s.SuccessfulTrades == 0 {
		return 0
	}
	return s.NetProfit / float64(s.SuccessfulTrades)
}

// TradeStore persists trade results. Persistence is best-effort: a store
// failure must never fail the trade that produced the record.
type TradeStore interface {
	Insert(ctx context.Context, res TradeResult) error
	Recent(ctx context.Context, limit int) ([]TradeResult, error)
}
