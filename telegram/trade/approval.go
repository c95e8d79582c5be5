package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/enescakir/emoji"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

// sender is the slice of the bot API the workflow needs; tests swap
// in a recorder.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Approvals delivers pending orders to the operators and routes their
// verdicts back through the ledger, which stays the only writer of
// order status.
type Approvals struct {
	ledger    *exchange.Ledger
	operators *telegram.Operators
	api       sender
}

func NewApprovals(ledger *exchange.Ledger, operators *telegram.Operators, api sender) *Approvals {
	return &Approvals{ledger: ledger, operators: operators, api: api}
}

func reviewKeyboard(orderID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("APPROVE", fmt.Sprintf("order approve %d", orderID)),
			tgbotapi.NewInlineKeyboardButtonData("REJECT", fmt.Sprintf("order reject %d", orderID)),
		),
	)
}

// NotifyNewOrder sends the full order details with approve/reject
// buttons to every operator. A delivery failure is logged with enough
// context to chase the order by hand.
func (a *Approvals) NotifyNewOrder(o exchange.Order) {
	if a.operators.Empty() {
		logger.WithField("order", o.ID).Warn("no operator configured, order waits in /pending")
		return
	}
	for _, opID := range a.operators.IDs() {
		msg := tgbotapi.NewMessage(opID, formatOrder(o))
		msg.ReplyMarkup = reviewKeyboard(o.ID)
		if _, err := a.api.Send(msg); err != nil {
			logger.WithField("order", o.ID).
				WithField("operator", opID).
				Errorf("review notification failed: %v", err)
		}
	}
}

// Serve subscribes the operator verdict callbacks.
func (a *Approvals) Serve(bot *telegram.Bot) {
	bot.CallBackQueryEvent.Subscribe(func(b *telegram.Bot, query tgbotapi.CallbackQuery) error {
		return a.handleVerdict(query)
	})
}

func (a *Approvals) handleVerdict(query tgbotapi.CallbackQuery) error {
	if !strings.HasPrefix(query.Data, "order ") {
		return nil
	}
	opChat := query.Message.Chat.ID
	if !a.operators.Contains(int64(query.From.ID)) {
		a.send(opChat, "you are not an operator")
		return nil
	}
	var verdict string
	var orderID int64
	if _, err := fmt.Sscanf(query.Data, "order %s %d", &verdict, &orderID); err != nil {
		return nil
	}
	var status exchange.OrderStatus
	switch verdict {
	case "approve":
		status = exchange.OrderConfirmed
	case "reject":
		status = exchange.OrderCancelled
	default:
		return nil
	}

	order, err := a.ledger.SetStatus(context.Background(), orderID, status)
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		a.send(opChat, fmt.Sprintf("order #%d not found", orderID))
		return nil
	case errors.Is(err, exchange.ErrInvalidTransition):
		// double click or a lost race with the other verdict; the
		// user was already told the first outcome, tell only the
		// operator
		a.send(opChat, fmt.Sprintf("order #%d is already %s", orderID, order.Status))
		return nil
	case err != nil:
		logger.WithField("order", orderID).Errorf("set status: %v", err)
		a.send(opChat, fmt.Sprintf("order #%d: storage error, try again", orderID))
		return nil
	}

	switch status {
	case exchange.OrderConfirmed:
		a.send(opChat, fmt.Sprintf("%v order #%d confirmed", emoji.CheckMarkButton, orderID))
		a.send(order.UserID, fmt.Sprintf("%v Your order #%d was confirmed.", emoji.CheckMarkButton, orderID))
	case exchange.OrderCancelled:
		a.send(opChat, fmt.Sprintf("%v order #%d rejected", emoji.CrossMark, orderID))
		a.send(order.UserID, fmt.Sprintf("%v Your order #%d was rejected.", emoji.CrossMark, orderID))
	}
	return nil
}

func (a *Approvals) send(chatID int64, text string) {
	if _, err := a.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.WithField("chat", chatID).Errorf("send failed: %v", err)
	}
}
