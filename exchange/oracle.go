package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "exchange")

// QuoteAsset is the fixed quote side of every trading pair.
const QuoteAsset = "USDT"

// Ticker is the raw best bid/ask reported by the venue.
type Ticker struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// PriceOracle produces a raw bid/ask for a pair symbol or fails with
// ErrUnavailable. No retry here; retry policy belongs to the caller.
type PriceOracle interface {
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
}

const oracleTimeout = 8 * time.Second

// VenueOracle queries GET <base>/ticker?symbol=<BASE><QUOTE>.
// Body: {"code":0,"msg":"ok","bid":"...","ask":"..."}; any transport
// error, non-2xx status, non-zero code or malformed number collapses
// to ErrUnavailable.
type VenueOracle struct {
	baseURL string
	client  *http.Client
}

func NewVenueOracle(baseURL string) *VenueOracle {
	return &VenueOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: oracleTimeout},
	}
}

type tickerResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Bid  string `json:"bid"`
	Ask  string `json:"ask"`
}

func (v *VenueOracle) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	q := url.Values{}
	q.Set("symbol", symbol+QuoteAsset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/ticker?"+q.Encode(), nil)
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Ticker{}, unavailable(symbol, fmt.Errorf("status %d", resp.StatusCode))
	}
	var body tickerResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	if body.Code != 0 {
		return Ticker{}, unavailable(symbol, fmt.Errorf("venue code %d: %s", body.Code, body.Msg))
	}
	bid, err := decimal.NewFromString(body.Bid)
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	ask, err := decimal.NewFromString(body.Ask)
	if err != nil {
		return Ticker{}, unavailable(symbol, err)
	}
	if bid.IsNegative() || ask.IsNegative() {
		return Ticker{}, unavailable(symbol, fmt.Errorf("negative price bid=%s ask=%s", bid, ask))
	}
	return Ticker{Bid: bid, Ask: ask}, nil
}

func unavailable(symbol string, cause error) error {
	logger.WithField("symbol", symbol).Warnf("ticker fetch failed: %v", cause)
	return fmt.Errorf("%w: %s", ErrUnavailable, symbol)
}
