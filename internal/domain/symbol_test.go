package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		coin  string
		quote string
		want  string
	}{
		{"BTC", "USDT", "BTC/USDT"},
		{"eth", "usdt", "ETH/USDT"},
		{" sol ", "USDT", "SOL/USDT"},
		{"BTC/USDC", "USDT", "BTC/USDC"},
		{"", "USDT", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSymbol(tt.coin, tt.quote), "coin=%q", tt.coin)
	}
}

func TestSymbolBaseQuote(t *testing.T) {
	assert.Equal(t, "BTC", SymbolBase("BTC/USDT"))
	assert.Equal(t, "USDT", SymbolQuote("BTC/USDT"))

	// Unqualified symbols fall back to the USDT quote.
	assert.Equal(t, "BTC", SymbolBase("btc"))
	assert.Equal(t, "USDT", SymbolQuote("BTC"))
}

func TestBestBidAsk(t *testing.T) {
	book := OrderbookSnapshot{
		Bids: []PriceLevel{{Price: 99.9, Size: 1}, {Price: 99.8, Size: 2}},
		Asks: []PriceLevel{{Price: 100.1, Size: 1}},
	}

	bid, ok := book.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 99.9, bid.Price)

	ask, ok := book.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, 100.1, ask.Price)

	empty := OrderbookSnapshot{}
	_, ok = empty.BestBid()
	assert.False(t, ok)
	_, ok = empty.BestAsk()
	assert.False(t, ok)
}
