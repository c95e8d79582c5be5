package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Quote is ephemeral: recomputed on every request, never persisted,
// never constructed when either raw side is missing.
type Quote struct {
	Symbol string
	RawBid decimal.Decimal
	RawAsk decimal.Decimal
	Buy    decimal.Decimal
	Sell   decimal.Decimal
	At     time.Time
}

// Quoter combines the oracle with the currency config snapshot.
type Quoter struct {
	oracle     PriceOracle
	currencies *Currencies
	group      singleflight.Group
}

func NewQuoter(oracle PriceOracle, currencies *Currencies) *Quoter {
	return &Quoter{oracle: oracle, currencies: currencies}
}

// Quote fetches a fresh ticker and applies the markup config read at
// call time. Concurrent requests for the same symbol share one
// upstream call.
func (q *Quoter) Quote(ctx context.Context, symbol string) (Quote, error) {
	cur, ok := q.currencies.Get(symbol)
	if !ok {
		return Quote{}, ErrUnknownSymbol
	}
	v, err, _ := q.group.Do(cur.Symbol, func() (interface{}, error) {
		return q.oracle.FetchTicker(ctx, cur.Symbol)
	})
	if err != nil {
		return Quote{}, err
	}
	ticker := v.(Ticker)
	return Quote{
		Symbol: cur.Symbol,
		RawBid: ticker.Bid,
		RawAsk: ticker.Ask,
		Buy:    PriceFor(Buy, ticker, cur),
		Sell:   PriceFor(Sell, ticker, cur),
		At:     time.Now(),
	}, nil
}
