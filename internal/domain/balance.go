package domain

// AssetBalance is the free/reserved/total triple for one (venue, asset) pair.
// Invariant: Total == Free + Reserved, Free >= 0, Reserved >= 0.
type AssetBalance struct {
	Free     float64
	Reserved float64
	Total    float64
}

// BalanceSummary is a per-venue breakdown of one asset, used by the status
// and /balance queries.
type BalanceSummary struct {
	Asset         string
	ByVenue       map[string]AssetBalance
	TotalFree     float64
	TotalReserved float64
	Total         float64
}

// RebalanceResult describes the outcome of an inter-venue rebalance attempt.
type RebalanceResult struct {
	FromVenue string
	ToVenue   string
	Method    string
	Moved     bool
	Amount    float64
}
