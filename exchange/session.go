package exchange

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step is the position of a user inside the ordering flow. It only
// ever advances to its immediate successor, or resets.
type Step int

const (
	StepIdle Step = iota
	StepCurrencyChosen
	StepAmountEntered
	StepDestinationEntered
	StepAwaitingProof
	// terminal, cleared by the session manager after handling
	StepSubmitted
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepCurrencyChosen:
		return "currency chosen"
	case StepAmountEntered:
		return "amount entered"
	case StepDestinationEntered:
		return "destination entered"
	case StepAwaitingProof:
		return "awaiting proof"
	case StepSubmitted:
		return "submitted"
	case StepCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Session carries only what has been collected so far. Attempt is
// regenerated on every reset; an async result tagged with an old
// attempt must be discarded.
type Session struct {
	UserID      int64
	Step        Step
	Attempt     uuid.UUID
	Direction   Direction
	Symbol      string
	Amount      decimal.Decimal
	Destination string
	ProofRef    string
}

func newSession(userID int64) Session {
	return Session{UserID: userID, Step: StepIdle, Attempt: uuid.New()}
}

func (s Session) reset() Session {
	return newSession(s.UserID)
}

// Events accepted by the machine.
type (
	SelectCurrency struct {
		Direction Direction
		Symbol    string
	}
	EnterAmount      struct{ Text string }
	EnterDestination struct{ Address string }
	SubmitProof      struct{ Ref string }
	Finalize         struct{}
	Cancel           struct{}
)

type Event interface{ isEvent() }

func (SelectCurrency) isEvent()   {}
func (EnterAmount) isEvent()      {}
func (EnterDestination) isEvent() {}
func (SubmitProof) isEvent()      {}
func (Finalize) isEvent()         {}
func (Cancel) isEvent()           {}

type Outcome int

const (
	OutcomeAdvanced Outcome = iota + 1
	OutcomeSubmitted
	OutcomeCancelled
)

// Advance is the pure transition function. On any error the returned
// session equals the input: invalid input never moves the step, the
// caller re-prompts. lookup resolves a symbol against the configured
// currency set.
func Advance(s Session, ev Event, lookup func(string) (Currency, bool)) (Session, Outcome, error) {
	if _, ok := ev.(Cancel); ok {
		// only an in-progress flow can be cancelled
		if s.Step == StepIdle || s.Step == StepSubmitted || s.Step == StepCancelled {
			return s, 0, ErrInvalidTransition
		}
		s.Step = StepCancelled
		return s, OutcomeCancelled, nil
	}

	switch s.Step {
	case StepIdle:
		e, ok := ev.(SelectCurrency)
		if !ok {
			return s, 0, ErrInvalidTransition
		}
		cur, known := lookup(e.Symbol)
		if !known {
			return s, 0, ErrUnknownSymbol
		}
		if e.Direction != Buy && e.Direction != Sell {
			return s, 0, ErrInvalidTransition
		}
		s.Step = StepCurrencyChosen
		s.Direction = e.Direction
		s.Symbol = cur.Symbol
		return s, OutcomeAdvanced, nil

	case StepCurrencyChosen:
		e, ok := ev.(EnterAmount)
		if !ok {
			return s, 0, ErrInvalidTransition
		}
		amount, err := ParseAmount(e.Text)
		if err != nil {
			return s, 0, err
		}
		s.Step = StepAmountEntered
		s.Amount = amount
		return s, OutcomeAdvanced, nil

	case StepAmountEntered:
		e, ok := ev.(EnterDestination)
		if !ok {
			return s, 0, ErrInvalidTransition
		}
		addr := strings.TrimSpace(e.Address)
		if addr == "" {
			return s, 0, ErrEmptyDestination
		}
		s.Step = StepDestinationEntered
		s.Destination = addr
		return s, OutcomeAdvanced, nil

	case StepDestinationEntered:
		e, ok := ev.(SubmitProof)
		if !ok {
			return s, 0, ErrInvalidTransition
		}
		ref := strings.TrimSpace(e.Ref)
		if ref == "" {
			return s, 0, ErrBadProof
		}
		s.Step = StepAwaitingProof
		s.ProofRef = ref
		return s, OutcomeAdvanced, nil

	case StepAwaitingProof:
		if _, ok := ev.(Finalize); !ok {
			return s, 0, ErrInvalidTransition
		}
		s.Step = StepSubmitted
		return s, OutcomeSubmitted, nil
	}
	return s, 0, ErrInvalidTransition
}
