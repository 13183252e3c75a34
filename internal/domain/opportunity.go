package domain

import "time"

// Opportunity is a candidate buy-low/sell-high pair produced by the scanner
// for one evaluation cycle. It is consumed immediately by the risk gate and
// the executor and never persisted.
type Opportunity struct {
	ID               string
	Symbol           string
	BuyVenue         string
	SellVenue        string
	BuyPrice         float64 // best ask on the buy venue
	SellPrice        float64 // best bid on the sell venue
	SpreadPercent    float64
	ProposedNotional float64 // quote-asset size suggested by the sizing engine
	Score            float64
	DetectedAt       time.Time
}
