package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurrencies(t *testing.T, symbols ...string) *Currencies {
	t.Helper()
	c, err := NewCurrencies(context.Background(), NewMemoryStore())
	require.Nil(t, err)
	for _, s := range symbols {
		require.Nil(t, c.Add(context.Background(), s, s))
	}
	return c
}

func TestSessionHappyPath(t *testing.T) {
	currencies := testCurrencies(t, "BTC", "ETH")
	s := newSession(7)

	s, outcome, err := Advance(s, SelectCurrency{Direction: Buy, Symbol: "btc"}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)
	assert.Equal(t, StepCurrencyChosen, s.Step)
	assert.Equal(t, "BTC", s.Symbol)

	s, _, err = Advance(s, EnterAmount{Text: "0.25"}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, StepAmountEntered, s.Step)

	s, _, err = Advance(s, EnterDestination{Address: "bc1qxyz"}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, StepDestinationEntered, s.Step)

	s, _, err = Advance(s, SubmitProof{Ref: "txid 0xabc"}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, StepAwaitingProof, s.Step)

	s, outcome, err = Advance(s, Finalize{}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, OutcomeSubmitted, outcome)
	assert.Equal(t, StepSubmitted, s.Step)
}

func TestSessionUnknownSymbolStaysIdle(t *testing.T) {
	currencies := testCurrencies(t, "BTC", "ETH")
	s := newSession(7)
	next, _, err := Advance(s, SelectCurrency{Direction: Buy, Symbol: "XRP"}, currencies.Get)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Equal(t, s, next)
	assert.Equal(t, StepIdle, next.Step)
}

// currentStep is either unchanged or the immediate successor, never
// two ahead, for any single event.
func TestSessionNeverSkipsStep(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	events := []Event{
		SelectCurrency{Direction: Sell, Symbol: "BTC"},
		EnterAmount{Text: "1.5"},
		EnterDestination{Address: "addr"},
		SubmitProof{Ref: "ref"},
		Finalize{},
	}
	s := newSession(1)
	for _, wrong := range events {
		for _, ev := range events {
			next, _, err := Advance(s, ev, currencies.Get)
			if err != nil {
				assert.Equal(t, s.Step, next.Step)
				continue
			}
			assert.Equal(t, int(s.Step)+1, int(next.Step), "from %s via %T", s.Step, ev)
		}
		// advance along the happy path one step
		next, _, err := Advance(s, wrong, currencies.Get)
		if err == nil {
			s = next
		}
	}
}

func TestSessionInvalidInputReprompts(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	s := newSession(1)
	s, _, err := Advance(s, SelectCurrency{Direction: Buy, Symbol: "BTC"}, currencies.Get)
	require.Nil(t, err)

	next, _, err := Advance(s, EnterAmount{Text: "lots"}, currencies.Get)
	assert.ErrorIs(t, err, ErrBadAmount)
	assert.Equal(t, s, next)

	next, _, err = Advance(s, EnterDestination{Address: "too early"}, currencies.Get)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, s, next)

	next, _, err = Advance(s, EnterAmount{Text: "-3"}, currencies.Get)
	assert.ErrorIs(t, err, ErrBadAmount)
	assert.Equal(t, s, next)
}

func TestSessionCancelAnywhere(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	s := newSession(1)
	s, _, _ = Advance(s, SelectCurrency{Direction: Buy, Symbol: "BTC"}, currencies.Get)
	s, _, _ = Advance(s, EnterAmount{Text: "2"}, currencies.Get)

	s, outcome, err := Advance(s, Cancel{}, currencies.Get)
	require.Nil(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, StepCancelled, s.Step)
}

// With no flow in progress there is nothing to cancel; the caller
// reports that instead of pretending a flow was aborted.
func TestSessionCancelAtIdleRejected(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	s := newSession(1)
	next, _, err := Advance(s, Cancel{}, currencies.Get)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, s, next)

	m := NewSessions(currencies)
	_, _, err = m.Apply(1, Cancel{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StepIdle, m.Peek(1).Step)
}

func TestSessionsApplyClearsTerminal(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	m := NewSessions(currencies)

	_, _, err := m.Apply(9, SelectCurrency{Direction: Buy, Symbol: "BTC"})
	require.Nil(t, err)
	snap, outcome, err := m.Apply(9, Cancel{})
	require.Nil(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, StepCancelled, snap.Step)
	// the live slot went back to Idle with a fresh attempt
	live := m.Peek(9)
	assert.Equal(t, StepIdle, live.Step)
	assert.NotEqual(t, snap.Attempt, live.Attempt)
}

// A quote fetched for an attempt that was cancelled mid-flight must be
// dropped: StillCurrent answers false after the reset.
func TestSessionsStaleAttemptDiscard(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	m := NewSessions(currencies)

	sess, _, err := m.Apply(5, SelectCurrency{Direction: Buy, Symbol: "BTC"})
	require.Nil(t, err)
	assert.True(t, m.StillCurrent(5, sess.Attempt))

	// user cancels while the oracle call is in flight
	_, _, err = m.Apply(5, Cancel{})
	require.Nil(t, err)
	assert.False(t, m.StillCurrent(5, sess.Attempt))
	assert.Equal(t, StepIdle, m.Peek(5).Step)
}

func TestSessionsIndependentUsers(t *testing.T) {
	currencies := testCurrencies(t, "BTC")
	m := NewSessions(currencies)
	_, _, err := m.Apply(1, SelectCurrency{Direction: Buy, Symbol: "BTC"})
	require.Nil(t, err)
	assert.Equal(t, StepCurrencyChosen, m.Peek(1).Step)
	assert.Equal(t, StepIdle, m.Peek(2).Step)
}
