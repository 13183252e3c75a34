package domain

import "time"

// Market is the per-venue metadata for one tradable symbol, loaded once at
// startup from the venue and used for fee lookup and order-cost clamping.
type Market struct {
	Symbol   string
	Active   bool
	MakerFee float64 // fraction, e.g. 0.001 = 0.1%
	TakerFee float64
	MinCost  float64 // minimum order notional in quote asset, 0 = unknown
	MaxCost  float64 // maximum order notional in quote asset, 0 = unknown
}

// Ticker is a venue's current top-of-book quote for a symbol.
type Ticker struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Time   time.Time
}
