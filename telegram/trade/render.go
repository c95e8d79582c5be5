package trade

import (
	"errors"
	"fmt"

	"github.com/enescakir/emoji"
	"github.com/muzaffarov/exchange-bot/exchange"
)

// RenderError is the single place component errors become user text.
func RenderError(err error) string {
	switch {
	case errors.Is(err, exchange.ErrUnavailable):
		return fmt.Sprintf("%v price feed is unavailable right now, try again later", emoji.Warning)
	case errors.Is(err, exchange.ErrUnknownSymbol):
		return "that currency is not available, pick one from /trade"
	case errors.Is(err, exchange.ErrDuplicateSymbol):
		return "that currency is already configured, adjust it with /setmarkup"
	case errors.Is(err, exchange.ErrBadAmount):
		return "amount must be a positive number, e.g. 0.05"
	case errors.Is(err, exchange.ErrEmptyDestination):
		return "destination address cannot be empty"
	case errors.Is(err, exchange.ErrBadProof):
		return "send a payment reference (transaction id or link)"
	case errors.Is(err, exchange.ErrInvalidTransition):
		return "that action does not fit where you are, use /trade or /cancel"
	case errors.Is(err, exchange.ErrNotFound):
		return "order not found"
	}
	return err.Error()
}

func formatQuote(q exchange.Quote) string {
	return fmt.Sprintf(`%v %s/%s
buy at %s
sell at %s`,
		emoji.Coin, q.Symbol, exchange.QuoteAsset,
		exchange.FormatPrice(q.Buy),
		exchange.FormatPrice(q.Sell),
	)
}

func formatOrder(o exchange.Order) string {
	return fmt.Sprintf(`%v order #%d
user: %d
side: %s
pair: %s/%s
amount: %s %s
destination: %s
proof: %s
status: %s
created: %s`,
		emoji.Memo, o.ID,
		o.UserID,
		o.Direction,
		o.Symbol, exchange.QuoteAsset,
		o.Amount, o.Symbol,
		o.Destination,
		o.ProofRef,
		o.Status,
		o.CreatedAt.Format("2006-01-02 15:04:05"),
	)
}
