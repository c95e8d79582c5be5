package trade

import (
	"context"
	"errors"
	"strings"

	"github.com/enescakir/emoji"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

// Rates lists all configured currencies with live quotes. A currency
// whose feed is down is listed as unavailable instead of being
// silently dropped.
type Rates struct {
	quoter     *exchange.Quoter
	currencies *exchange.Currencies
}

func NewRates(quoter *exchange.Quoter, currencies *exchange.Currencies) *Rates {
	return &Rates{quoter: quoter, currencies: currencies}
}

func (r *Rates) ID() tgbotapi.BotCommand {
	return tgbotapi.BotCommand{
		Command:     "rates",
		Description: "current buy/sell prices",
	}
}

func (r *Rates) Init() {}

func (r *Rates) Authorize() telegram.Authorizer {
	return telegram.PolicyAllow
}

func (r *Rates) Serve(bot *telegram.Bot) error {
	bot.Match(r).Subscribe(r.handle)
	return nil
}

func (r *Rates) handle(b *telegram.Bot, u tgbotapi.Update) error {
	list := r.currencies.List()
	if len(list) == 0 {
		b.ReplyTo(*u.Message, "no currencies configured yet")
		return nil
	}
	// the board quotes every currency in turn, each up to the oracle
	// timeout; build it off the dispatch goroutine so a stalled venue
	// never holds up other users' updates
	msg := *u.Message
	go func() {
		b.ReplyTo(msg, "%s", r.board(list))
	}()
	return nil
}

func (r *Rates) board(list []exchange.Currency) string {
	var sb strings.Builder
	for _, cur := range list {
		q, err := r.quoter.Quote(context.Background(), cur.Symbol)
		switch {
		case errors.Is(err, exchange.ErrUnavailable):
			sb.WriteString(cur.Symbol + ": unavailable\n")
			continue
		case err != nil:
			// removed by an operator while the board was building
			logger.WithField("symbol", cur.Symbol).Warnf("skip rate line: %v", err)
			continue
		}
		sb.WriteString(emoji.Coin.String() + " " + cur.Symbol + "/" + exchange.QuoteAsset +
			"  buy " + exchange.FormatPrice(q.Buy) +
			"  sell " + exchange.FormatPrice(q.Sell) + "\n")
	}
	return sb.String()
}
