package trade

import (
	"context"
	"testing"
	"time"

	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTickerSource serves canned tickers per symbol and, when release
// is set, stalls every fetch until the channel is closed.
type fakeTickerSource struct {
	release chan struct{}
	tickers map[string]exchange.Ticker
	errs    map[string]error
}

func (f *fakeTickerSource) FetchTicker(_ context.Context, symbol string) (exchange.Ticker, error) {
	if f.release != nil {
		<-f.release
	}
	if err, ok := f.errs[symbol]; ok {
		return exchange.Ticker{}, err
	}
	return f.tickers[symbol], nil
}

func quoterFixture(t *testing.T, oracle exchange.PriceOracle) (*exchange.Quoter, *exchange.Currencies) {
	t.Helper()
	ctx := context.Background()
	currencies, err := exchange.NewCurrencies(ctx, exchange.NewMemoryStore())
	require.Nil(t, err)
	require.Nil(t, currencies.Add(ctx, "BTC", "Bitcoin"))
	require.Nil(t, currencies.Add(ctx, "ETH", "Ether"))
	require.Nil(t, currencies.SetMarkup(ctx, "BTC",
		decimal.RequireFromString("0.03"), decimal.RequireFromString("0.01")))
	return exchange.NewQuoter(oracle, currencies), currencies
}

func TestRatesBoardListsEveryCurrency(t *testing.T) {
	oracle := &fakeTickerSource{
		tickers: map[string]exchange.Ticker{
			"BTC": {Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("102")},
		},
		errs: map[string]error{"ETH": exchange.ErrUnavailable},
	}
	quoter, currencies := quoterFixture(t, oracle)
	r := NewRates(quoter, currencies)

	text := r.board(currencies.List())
	assert.Contains(t, text, "BTC/USDT")
	assert.Contains(t, text, "buy 105.0600")
	assert.Contains(t, text, "sell 99.0000")
	assert.Contains(t, text, "ETH: unavailable")
}

func TestQuickQuoteText(t *testing.T) {
	oracle := &fakeTickerSource{
		tickers: map[string]exchange.Ticker{
			"BTC": {Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("102")},
		},
	}
	quoter, _ := quoterFixture(t, oracle)

	text := quickQuoteText(quoter, decimal.RequireFromString("2"), "btc")
	assert.Contains(t, text, "210.1200")
	assert.Contains(t, text, "198.0000")

	assert.Equal(t, RenderError(exchange.ErrUnknownSymbol),
		quickQuoteText(quoter, decimal.RequireFromString("2"), "XRP"))
}

// The board is built off the dispatch goroutine; a stalled venue delays
// only the reply to the asking user, which still arrives once the venue
// answers.
func TestBoardDeliversAfterSlowVenue(t *testing.T) {
	release := make(chan struct{})
	oracle := &fakeTickerSource{
		release: release,
		tickers: map[string]exchange.Ticker{
			"BTC": {Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("102")},
			"ETH": {Bid: decimal.RequireFromString("10"), Ask: decimal.RequireFromString("11")},
		},
	}
	quoter, currencies := quoterFixture(t, oracle)
	r := NewRates(quoter, currencies)

	out := make(chan string, 1)
	go func() { out <- r.board(currencies.List()) }()

	select {
	case <-out:
		t.Fatal("board finished before the venue answered")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case text := <-out:
		assert.Contains(t, text, "BTC/USDT")
		assert.Contains(t, text, "ETH/USDT")
	case <-time.After(time.Second):
		t.Fatal("board never delivered")
	}
}
