package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Direction int

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, true
	case "SELL":
		return Sell, true
	}
	return 0, false
}

// PriceFor derives the public price from a raw ticker.
// The user buys at ask*(1+buyMarkup) and sells at bid*(1-sellMarkup),
// so the spread always favors the desk when markups are non-negative.
func PriceFor(d Direction, t Ticker, cur Currency) decimal.Decimal {
	one := decimal.NewFromInt(1)
	switch d {
	case Buy:
		return t.Ask.Mul(one.Add(cur.BuyMarkup))
	case Sell:
		return t.Bid.Mul(one.Sub(cur.SellMarkup))
	}
	return decimal.Zero
}

// ParseAmount validates user amount input at the edge, before any
// arithmetic sees it.
func ParseAmount(s string) (decimal.Decimal, error) {
	n, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrBadAmount
	}
	if !n.IsPositive() {
		return decimal.Zero, ErrBadAmount
	}
	return n, nil
}

// FormatPrice renders a price with four fractional digits, the display
// precision used everywhere a quote reaches a user.
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(4)
}
