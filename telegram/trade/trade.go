package trade

import (
	"context"
	"fmt"
	"strings"

	"github.com/enescakir/emoji"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	"github.com/shopspring/decimal"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

var logger = telegram.GetModuleLogger("trade")

// Trade drives the order conversation: pick a currency and side, enter
// an amount, a destination, a payment proof, confirm. One step per
// inbound event, invalid input re-prompts the same step.
type Trade struct {
	sessions   *exchange.Sessions
	quoter     *exchange.Quoter
	ledger     *exchange.Ledger
	currencies *exchange.Currencies
	users      *exchange.Users
	approvals  *Approvals
}

func NewTrade(
	sessions *exchange.Sessions,
	quoter *exchange.Quoter,
	ledger *exchange.Ledger,
	currencies *exchange.Currencies,
	users *exchange.Users,
	approvals *Approvals,
) *Trade {
	return &Trade{
		sessions:   sessions,
		quoter:     quoter,
		ledger:     ledger,
		currencies: currencies,
		users:      users,
		approvals:  approvals,
	}
}

func (t *Trade) ID() tgbotapi.BotCommand {
	return tgbotapi.BotCommand{
		Command:     "trade",
		Description: "buy or sell crypto",
	}
}

func (t *Trade) Init() {}

func (t *Trade) Authorize() telegram.Authorizer {
	return telegram.PolicyAllow
}

func (t *Trade) Serve(bot *telegram.Bot) error {
	bot.Match(t).Subscribe(t.handle)
	bot.CallBackQueryEvent.Subscribe(t.callbackQuery)
	bot.UpdateEvent.Subscribe(t.text)
	return nil
}

func cancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("CANCEL", "trade cancel"))
}

func (t *Trade) currencyKeyboard() [][]tgbotapi.InlineKeyboardButton {
	var kbd [][]tgbotapi.InlineKeyboardButton
	for _, cur := range t.currencies.List() {
		kbd = append(kbd, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Buy %s", cur.Symbol),
				fmt.Sprintf("trade buy %s", cur.Symbol),
			),
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Sell %s", cur.Symbol),
				fmt.Sprintf("trade sell %s", cur.Symbol),
			),
		))
	}
	kbd = append(kbd, cancelRow())
	return kbd
}

func (t *Trade) handle(b *telegram.Bot, u tgbotapi.Update) error {
	t.remember(int64(u.Message.From.ID))
	if len(t.currencies.List()) == 0 {
		b.ReplyTo(*u.Message, "no currencies configured yet, check back later")
		return nil
	}
	msg := tgbotapi.NewMessage(u.Message.Chat.ID, "What would you like to do?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(t.currencyKeyboard()...)
	_, err := b.Bot().Send(msg)
	return err
}

func (t *Trade) callbackQuery(b *telegram.Bot, query tgbotapi.CallbackQuery) error {
	data := query.Data
	if !strings.HasPrefix(data, "trade ") {
		return nil
	}
	userID := int64(query.From.ID)
	chatID := query.Message.Chat.ID

	switch {
	case data == "trade cancel":
		_, _, err := t.sessions.Apply(userID, exchange.Cancel{})
		if err != nil {
			// nothing in progress, not worth a complaint
			b.Sendf(chatID, "nothing to cancel")
			return nil
		}
		b.Sendf(chatID, "%v order flow cancelled", emoji.CrossMark)
		return nil

	case data == "trade confirm":
		return t.finalize(b, userID, chatID)

	default:
		var side, symbol string
		if _, err := fmt.Sscanf(data, "trade %s %s", &side, &symbol); err != nil {
			return nil
		}
		direction, ok := exchange.ParseDirection(side)
		if !ok {
			return nil
		}
		sess, _, err := t.sessions.Apply(userID, exchange.SelectCurrency{
			Direction: direction,
			Symbol:    symbol,
		})
		if err != nil {
			return err
		}
		b.Sendf(chatID, "%s %s/%s. Fetching the current price...",
			sess.Direction, sess.Symbol, exchange.QuoteAsset)
		// fetch off the dispatch goroutine so other users never wait;
		// the attempt token drops the result if the user cancelled
		// while the venue was slow
		go t.quoteAndPrompt(b, chatID, sess)
		return nil
	}
}

func (t *Trade) quoteAndPrompt(b *telegram.Bot, chatID int64, sess exchange.Session) {
	q, err := t.quoter.Quote(context.Background(), sess.Symbol)
	if !t.sessions.StillCurrent(sess.UserID, sess.Attempt) {
		logger.WithField("user", sess.UserID).
			WithField("symbol", sess.Symbol).
			Info("discarding stale quote result")
		return
	}
	if err != nil {
		b.Sendf(chatID, "%s", RenderError(err))
		return
	}
	price := q.Buy
	if sess.Direction == exchange.Sell {
		price = q.Sell
	}
	b.Sendf(chatID, "%s\n\nYour %s price: %s\nHow much %s?",
		formatQuote(q),
		strings.ToLower(sess.Direction.String()),
		exchange.FormatPrice(price),
		sess.Symbol)
}

func (t *Trade) text(b *telegram.Bot, u tgbotapi.Update) error {
	if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
		return nil
	}
	userID := int64(u.Message.From.ID)
	t.remember(userID)
	text := strings.TrimSpace(u.Message.Text)

	switch t.sessions.Peek(userID).Step {
	case exchange.StepIdle:
		return t.quickQuote(b, u, text)

	case exchange.StepCurrencyChosen:
		sess, _, err := t.sessions.Apply(userID, exchange.EnterAmount{Text: text})
		if err != nil {
			return err
		}
		go t.notionalAndPrompt(b, u.Message.Chat.ID, sess)
		return nil

	case exchange.StepAmountEntered:
		_, _, err := t.sessions.Apply(userID, exchange.EnterDestination{Address: text})
		if err != nil {
			return err
		}
		b.ReplyTo(*u.Message, "Got it. Now send a payment reference (transaction id or link).")
		return nil

	case exchange.StepDestinationEntered:
		sess, _, err := t.sessions.Apply(userID, exchange.SubmitProof{Ref: text})
		if err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(u.Message.Chat.ID, t.summary(sess))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("SUBMIT ORDER", "trade confirm"),
			),
			cancelRow(),
		)
		_, err = b.Bot().Send(msg)
		return err

	case exchange.StepAwaitingProof:
		b.ReplyTo(*u.Message, "Press SUBMIT ORDER to finish, or CANCEL to abort.")
		return nil
	}
	return nil
}

func (t *Trade) summary(sess exchange.Session) string {
	return fmt.Sprintf(`%v Check please
side: %s
pair: %s/%s
amount: %s %s
destination: %s
proof: %s`,
		emoji.Coin,
		sess.Direction,
		sess.Symbol, exchange.QuoteAsset,
		sess.Amount, sess.Symbol,
		sess.Destination,
		sess.ProofRef,
	)
}

func (t *Trade) notionalAndPrompt(b *telegram.Bot, chatID int64, sess exchange.Session) {
	q, err := t.quoter.Quote(context.Background(), sess.Symbol)
	if !t.sessions.StillCurrent(sess.UserID, sess.Attempt) {
		logger.WithField("user", sess.UserID).
			WithField("symbol", sess.Symbol).
			Info("discarding stale quote result")
		return
	}
	if err != nil {
		// the amount is already recorded, the price shown is informational
		b.Sendf(chatID, "%s\nWhere should the %s go? Send a destination address.",
			RenderError(err), sess.Symbol)
		return
	}
	price := q.Buy
	if sess.Direction == exchange.Sell {
		price = q.Sell
	}
	b.Sendf(chatID, "%s %s ≈ %s %s at the current %s price.\nSend a destination address.",
		sess.Amount, sess.Symbol,
		exchange.FormatPrice(sess.Amount.Mul(price)), exchange.QuoteAsset,
		strings.ToLower(sess.Direction.String()))
}

func (t *Trade) finalize(b *telegram.Bot, userID, chatID int64) error {
	sess, outcome, err := t.sessions.Apply(userID, exchange.Finalize{})
	if err != nil {
		return err
	}
	if outcome != exchange.OutcomeSubmitted {
		return nil
	}
	ctx := context.Background()
	id, err := t.ledger.Create(ctx, userID, sess.Direction, sess.Symbol, sess.Amount, sess.Destination, sess.ProofRef)
	if err != nil {
		logger.WithField("user", userID).
			WithField("symbol", sess.Symbol).
			Errorf("order write failed: %v", err)
		b.Sendf(chatID, "could not record your order, please try again")
		return nil
	}
	b.Sendf(chatID, "%v Order #%d submitted. An operator will review it shortly.", emoji.HourglassNotDone, id)
	order, err := t.ledger.Get(ctx, id)
	if err != nil {
		logger.Errorf("read back order %d: %v", id, err)
		return nil
	}
	t.approvals.NotifyNewOrder(order)
	return nil
}

// quickQuote answers a bare "<amount> <SYM>" message with the current
// quote, without starting an order.
func (t *Trade) quickQuote(b *telegram.Bot, u tgbotapi.Update, text string) error {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		b.ReplyTo(*u.Message, "To get a quote send e.g. \"0.5 BTC\", or use /trade to place an order.")
		return nil
	}
	amount, err := exchange.ParseAmount(fields[0])
	if err != nil {
		return err
	}
	// same off-loop rule as the order flow: a slow venue must not
	// stall the dispatch goroutine for everyone else
	msg := *u.Message
	symbol := fields[1]
	go func() {
		b.ReplyTo(msg, "%s", quickQuoteText(t.quoter, amount, symbol))
	}()
	return nil
}

func quickQuoteText(quoter *exchange.Quoter, amount decimal.Decimal, symbol string) string {
	q, err := quoter.Quote(context.Background(), symbol)
	if err != nil {
		return RenderError(err)
	}
	return fmt.Sprintf(`%s
%s %s costs %s %s to buy
%s %s pays %s %s to sell`,
		formatQuote(q),
		amount, q.Symbol, exchange.FormatPrice(amount.Mul(q.Buy)), exchange.QuoteAsset,
		amount, q.Symbol, exchange.FormatPrice(amount.Mul(q.Sell)), exchange.QuoteAsset,
	)
}

func (t *Trade) remember(userID int64) {
	if err := t.users.Remember(context.Background(), userID); err != nil {
		logger.WithField("user", userID).Errorf("remember user: %v", err)
	}
}

// CancelCommand lets the user abort an in-progress flow with /cancel.
type CancelCommand struct {
	sessions *exchange.Sessions
}

func NewCancelCommand(sessions *exchange.Sessions) *CancelCommand {
	return &CancelCommand{sessions: sessions}
}

func (c *CancelCommand) ID() tgbotapi.BotCommand {
	return tgbotapi.BotCommand{
		Command:     "cancel",
		Description: "abort the current order flow",
	}
}

func (c *CancelCommand) Init() {}

func (c *CancelCommand) Authorize() telegram.Authorizer {
	return telegram.PolicyAllow
}

func (c *CancelCommand) Serve(bot *telegram.Bot) error {
	bot.Match(c).Subscribe(func(b *telegram.Bot, u tgbotapi.Update) error {
		if _, _, err := c.sessions.Apply(int64(u.Message.From.ID), exchange.Cancel{}); err != nil {
			b.ReplyTo(*u.Message, "nothing to cancel")
			return nil
		}
		b.ReplyTo(*u.Message, "%v order flow cancelled", emoji.CrossMark)
		return nil
	})
	return nil
}
