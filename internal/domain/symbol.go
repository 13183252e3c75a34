package domain

import "strings"

// NormalizeSymbol turns a bare coin name into a BASE/QUOTE pair symbol.
// "BTC" with quote "USDT" becomes "BTC/USDT"; an already-qualified symbol is
// returned unchanged.
func NormalizeSymbol(coin, quote string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	if strings.Contains(coin, "/") {
		return coin
	}
	return coin + "/" + strings.ToUpper(strings.TrimSpace(quote))
}

// SymbolBase returns the base asset of a BASE/QUOTE symbol ("BTC/USDT" -> "BTC").
// For an unqualified symbol the whole string is treated as the base.
func SymbolBase(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, "/"); i >= 0 {
		return s[:i]
	}
	return s
}

// SymbolQuote returns the quote asset of a BASE/QUOTE symbol, defaulting to
// USDT when the symbol carries no quote part.
func SymbolQuote(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, "/"); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return "USDT"
}
