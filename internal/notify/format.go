package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greentrades/arbot/internal/domain"
)

// Event types the bot emits. The notifier's event filter matches against
// these names.
const (
	EventStartup       = "startup"
	EventShutdown      = "shutdown"
	EventTradeExecuted = "trade_executed"
	EventTradeFailed   = "trade_failed"
	EventEmergency     = "emergency"
	EventRiskLimit     = "risk_limit"
	EventRebalance     = "rebalance"
)

func formatStatus(s domain.BotStatus) string {
	state := "running"
	if !s.Running {
		state = "stopped"
	} else if s.Paused {
		state = "paused"
	}
	return fmt.Sprintf("Mode: %s\nState: %s\nUptime: %s\nVenues: %d\nCycles: %d",
		s.Mode, state, s.Uptime.Round(time.Second), s.Venues, s.Cycles)
}

func formatBalances(sum domain.BalanceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s balances\n", sum.Asset)

	venues := make([]string, 0, len(sum.ByVenue))
	for v := range sum.ByVenue {
		venues = append(venues, v)
	}
	sort.Strings(venues)
	for _, v := range venues {
		bal := sum.ByVenue[v]
		fmt.Fprintf(&b, "%s: %.2f free / %.2f reserved\n", v, bal.Free, bal.Reserved)
	}
	fmt.Fprintf(&b, "Total: %.2f", sum.Total)
	return b.String()
}

func formatStats(s domain.TradeStats) string {
	return fmt.Sprintf(
		"Trades: %d (%d ok, %d failed)\nSuccess rate: %.1f%%\nGross: %.4f\nFees: %.4f\nSlippage: %.4f\nNet: %.4f",
		s.TotalTrades, s.SuccessfulTrades, s.FailedTrades,
		s.SuccessRate(), s.GrossProfit, s.Fees, s.SlippageCost, s.NetProfit,
	)
}
