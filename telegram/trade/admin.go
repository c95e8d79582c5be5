package trade

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	"github.com/shopspring/decimal"
	"github.com/thoas/go-funk"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

// Admin carries the shared dependencies of the operator command set.
type Admin struct {
	currencies *exchange.Currencies
	ledger     *exchange.Ledger
	users      *exchange.Users
	operators  *telegram.Operators
	sanitizer  *bluemonday.Policy
}

func NewAdmin(currencies *exchange.Currencies, ledger *exchange.Ledger, users *exchange.Users, operators *telegram.Operators) *Admin {
	p := bluemonday.NewPolicy()
	// tags telegram accepts in HTML parse mode
	p.AllowElements("b", "i", "u", "s", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	return &Admin{
		currencies: currencies,
		ledger:     ledger,
		users:      users,
		operators:  operators,
		sanitizer:  p,
	}
}

// Commands returns one Command per operator verb, all gated on the
// operator role.
func (a *Admin) Commands() []telegram.Command {
	return []telegram.Command{
		&adminCommand{a, "addcurrency", "add a currency: /addcurrency SYM Display Name", a.addCurrency},
		&adminCommand{a, "delcurrency", "remove a currency: /delcurrency SYM", a.delCurrency},
		&adminCommand{a, "setmarkup", "set markups: /setmarkup SYM 0.03 0.01", a.setMarkup},
		&adminCommand{a, "pending", "list pending orders", a.pending},
		&adminCommand{a, "broadcast", "message every known user", a.broadcast},
	}
}

type adminCommand struct {
	admin       *Admin
	name        string
	description string
	run         func(b *telegram.Bot, u tgbotapi.Update, args string) error
}

func (c *adminCommand) ID() tgbotapi.BotCommand {
	return tgbotapi.BotCommand{Command: c.name, Description: c.description}
}

func (c *adminCommand) Init() {}

func (c *adminCommand) Authorize() telegram.Authorizer {
	return c.admin.operators
}

func (c *adminCommand) Serve(bot *telegram.Bot) error {
	bot.Match(c).Subscribe(func(b *telegram.Bot, u tgbotapi.Update) error {
		return c.run(b, u, strings.TrimSpace(u.Message.CommandArguments()))
	})
	return nil
}

func (a *Admin) addCurrency(b *telegram.Bot, u tgbotapi.Update, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.ReplyTo(*u.Message, "usage: /addcurrency SYM Display Name")
		return nil
	}
	symbol, name := fields[0], strings.Join(fields[1:], " ")
	if err := a.currencies.Add(context.Background(), symbol, name); err != nil {
		return err
	}
	b.ReplyTo(*u.Message, "added %s (%s) with zero markup, set it with /setmarkup", strings.ToUpper(symbol), name)
	return nil
}

func (a *Admin) delCurrency(b *telegram.Bot, u tgbotapi.Update, args string) error {
	if args == "" {
		b.ReplyTo(*u.Message, "usage: /delcurrency SYM")
		return nil
	}
	if err := a.currencies.Remove(context.Background(), args); err != nil {
		return err
	}
	b.ReplyTo(*u.Message, "removed %s; recorded orders keep the symbol", strings.ToUpper(args))
	return nil
}

func (a *Admin) setMarkup(b *telegram.Bot, u tgbotapi.Update, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		b.ReplyTo(*u.Message, "usage: /setmarkup SYM buyMarkup sellMarkup, e.g. /setmarkup BTC 0.03 0.01")
		return nil
	}
	buy, err := decimal.NewFromString(fields[1])
	if err != nil {
		return exchange.ErrBadAmount
	}
	sell, err := decimal.NewFromString(fields[2])
	if err != nil {
		return exchange.ErrBadAmount
	}
	if err = a.currencies.SetMarkup(context.Background(), fields[0], buy, sell); err != nil {
		return err
	}
	b.ReplyTo(*u.Message, "markup for %s set to buy %s / sell %s, effective on the next quote",
		strings.ToUpper(fields[0]), buy, sell)
	return nil
}

func (a *Admin) pending(b *telegram.Bot, u tgbotapi.Update, _ string) error {
	orders, err := a.ledger.ListPending(context.Background())
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		b.ReplyTo(*u.Message, "no pending orders")
		return nil
	}
	lines := funk.Map(orders, func(o exchange.Order) string {
		return fmt.Sprintf("#%d %s %s %s from %d (%s)",
			o.ID, o.Direction, o.Amount, o.Symbol, o.UserID, o.CreatedAt.Format("01-02 15:04"))
	}).([]string)
	b.ReplyTo(*u.Message, "%d pending:\n%s", len(orders), strings.Join(lines, "\n"))
	for _, o := range orders {
		msg := tgbotapi.NewMessage(u.Message.Chat.ID, formatOrder(o))
		msg.ReplyMarkup = reviewKeyboard(o.ID)
		if _, err = b.Bot().Send(msg); err != nil {
			logger.WithField("order", o.ID).Errorf("send review card: %v", err)
		}
	}
	return nil
}

func (a *Admin) broadcast(b *telegram.Bot, u tgbotapi.Update, args string) error {
	if args == "" {
		b.ReplyTo(*u.Message, "usage: /broadcast message text")
		return nil
	}
	text := a.sanitizer.Sanitize(args)
	ids, err := a.users.All(context.Background())
	if err != nil {
		return err
	}
	var sent int
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = "HTML"
		if _, err = b.Bot().Send(msg); err != nil {
			// keep going, one blocked chat must not stop the rest
			logger.WithField("chat", id).Errorf("broadcast failed: %v", err)
			continue
		}
		sent++
	}
	b.ReplyTo(*u.Message, "broadcast delivered to %d/%d users", sent, len(ids))
	return nil
}
