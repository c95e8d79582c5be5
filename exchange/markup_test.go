package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPriceForBuyMarkup(t *testing.T) {
	cur := Currency{Symbol: "BTC", BuyMarkup: dec("0.03")}
	ticker := Ticker{Bid: dec("59900"), Ask: dec("60000")}
	p := PriceFor(Buy, ticker, cur)
	assert.Equal(t, "61800.0000", FormatPrice(p))
}

func TestPriceForSellMarkup(t *testing.T) {
	cur := Currency{Symbol: "BTC", SellMarkup: dec("0.02")}
	ticker := Ticker{Bid: dec("50000"), Ask: dec("50100")}
	p := PriceFor(Sell, ticker, cur)
	assert.Equal(t, "49000.0000", FormatPrice(p))
}

// With non-negative markups the desk never loses the spread.
func TestPriceSpreadFavorsDesk(t *testing.T) {
	ticker := Ticker{Bid: dec("0.0712"), Ask: dec("0.0715")}
	for _, markup := range []string{"0", "0.001", "0.05", "0.5", "0.999"} {
		cur := Currency{Symbol: "XX", BuyMarkup: dec(markup), SellMarkup: dec(markup)}
		buy := PriceFor(Buy, ticker, cur)
		sell := PriceFor(Sell, ticker, cur)
		assert.True(t, buy.GreaterThanOrEqual(ticker.Ask), "markup %s", markup)
		assert.True(t, sell.LessThanOrEqual(ticker.Bid), "markup %s", markup)
	}
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount(" 0.05 ")
	assert.Nil(t, err)
	assert.True(t, n.Equal(dec("0.05")))

	for _, bad := range []string{"", "abc", "-1", "0", "1e", "1,5"} {
		_, err = ParseAmount(bad)
		assert.ErrorIs(t, err, ErrBadAmount, "input %q", bad)
	}
}

func TestValidateMarkup(t *testing.T) {
	assert.Nil(t, validateMarkup(dec("0")))
	assert.Nil(t, validateMarkup(dec("0.999")))
	assert.Error(t, validateMarkup(dec("-0.01")))
	assert.Error(t, validateMarkup(dec("1")))
	assert.Error(t, validateMarkup(dec("1.5")))
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("buy")
	assert.True(t, ok)
	assert.Equal(t, Buy, d)
	d, ok = ParseDirection(" SELL ")
	assert.True(t, ok)
	assert.Equal(t, Sell, d)
	_, ok = ParseDirection("hold")
	assert.False(t, ok)
}
