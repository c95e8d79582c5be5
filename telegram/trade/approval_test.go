package trade

import (
	"context"
	"strings"
	"testing"

	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{chatID: m.ChatID, text: m.Text})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) to(chatID int64) []string {
	var out []string
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

const (
	operatorChat = int64(900)
	customerChat = int64(42)
)

func verdictQuery(data string, from int64) tgbotapi.CallbackQuery {
	return tgbotapi.CallbackQuery{
		Data: data,
		From: &tgbotapi.User{ID: int(from)},
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: from},
		},
	}
}

func newApprovalFixture(t *testing.T) (*Approvals, *exchange.Ledger, *fakeSender) {
	t.Helper()
	ledger := exchange.NewLedger(exchange.NewMemoryStore())
	operators := telegram.NewOperators([]int64{operatorChat})
	api := &fakeSender{}
	return NewApprovals(ledger, operators, api), ledger, api
}

func createOrder(t *testing.T, ledger *exchange.Ledger) exchange.Order {
	t.Helper()
	amount, _ := decimal.NewFromString("0.5")
	id, err := ledger.Create(context.Background(), customerChat, exchange.Buy, "BTC", amount, "bc1qxyz", "tx 0xabc")
	require.Nil(t, err)
	o, err := ledger.Get(context.Background(), id)
	require.Nil(t, err)
	return o
}

func TestNotifyNewOrderReachesOperator(t *testing.T) {
	a, ledger, api := newApprovalFixture(t)
	o := createOrder(t, ledger)

	a.NotifyNewOrder(o)
	msgs := api.to(operatorChat)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "order #1")
	assert.Contains(t, msgs[0], "BTC")
	assert.Contains(t, msgs[0], "bc1qxyz")
}

func TestApproveConfirmsAndNotifiesUser(t *testing.T) {
	a, ledger, api := newApprovalFixture(t)
	o := createOrder(t, ledger)

	err := a.handleVerdict(verdictQuery("order approve 1", operatorChat))
	require.Nil(t, err)

	got, err := ledger.Get(context.Background(), o.ID)
	require.Nil(t, err)
	assert.Equal(t, exchange.OrderConfirmed, got.Status)

	userMsgs := api.to(customerChat)
	require.Len(t, userMsgs, 1)
	assert.Contains(t, userMsgs[0], "confirmed")
}

// The second verdict on a terminal order reports to the operator only:
// no second notification confuses the user.
func TestDoubleVerdictIsIdempotent(t *testing.T) {
	a, ledger, api := newApprovalFixture(t)
	createOrder(t, ledger)

	require.Nil(t, a.handleVerdict(verdictQuery("order approve 1", operatorChat)))
	require.Nil(t, a.handleVerdict(verdictQuery("order reject 1", operatorChat)))

	got, err := ledger.Get(context.Background(), 1)
	require.Nil(t, err)
	assert.Equal(t, exchange.OrderConfirmed, got.Status)

	assert.Len(t, api.to(customerChat), 1)
	opMsgs := api.to(operatorChat)
	require.Len(t, opMsgs, 2)
	assert.Contains(t, opMsgs[1], "already")
}

func TestRejectCancelsAndNotifiesUser(t *testing.T) {
	a, ledger, api := newApprovalFixture(t)
	createOrder(t, ledger)

	require.Nil(t, a.handleVerdict(verdictQuery("order reject 1", operatorChat)))
	got, err := ledger.Get(context.Background(), 1)
	require.Nil(t, err)
	assert.Equal(t, exchange.OrderCancelled, got.Status)
	userMsgs := api.to(customerChat)
	require.Len(t, userMsgs, 1)
	assert.Contains(t, userMsgs[0], "rejected")
}

func TestVerdictOnMissingOrder(t *testing.T) {
	a, _, api := newApprovalFixture(t)
	require.Nil(t, a.handleVerdict(verdictQuery("order approve 7", operatorChat)))
	opMsgs := api.to(operatorChat)
	require.Len(t, opMsgs, 1)
	assert.Contains(t, opMsgs[0], "not found")
}

func TestVerdictFromNonOperatorDenied(t *testing.T) {
	a, ledger, api := newApprovalFixture(t)
	createOrder(t, ledger)

	require.Nil(t, a.handleVerdict(verdictQuery("order approve 1", customerChat)))
	got, err := ledger.Get(context.Background(), 1)
	require.Nil(t, err)
	assert.Equal(t, exchange.OrderPending, got.Status)
	msgs := api.to(customerChat)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "not an operator")
}

func TestUnrelatedCallbackIgnored(t *testing.T) {
	a, _, api := newApprovalFixture(t)
	require.Nil(t, a.handleVerdict(verdictQuery("trade buy BTC", operatorChat)))
	assert.Empty(t, api.sent)
}

func TestRenderErrorKinds(t *testing.T) {
	assert.Contains(t, RenderError(exchange.ErrUnavailable), "try again later")
	assert.Contains(t, RenderError(exchange.ErrBadAmount), "positive number")
	assert.Contains(t, strings.ToLower(RenderError(exchange.ErrUnknownSymbol)), "currency")
}
