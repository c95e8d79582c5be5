package exchange

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions serializes events per user: no two events for the same
// user id run concurrently, different users never wait on each other.
// Session state lives in memory only; an abandoned flow costs nothing.
type Sessions struct {
	currencies *Currencies

	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	mu   sync.Mutex
	sess Session
}

func NewSessions(currencies *Currencies) *Sessions {
	return &Sessions{
		currencies: currencies,
		slots:      make(map[int64]*slot),
	}
}

func (m *Sessions) slot(userID int64) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[userID]
	if !ok {
		s = &slot{sess: newSession(userID)}
		m.slots[userID] = s
	}
	return s
}

// Apply runs one event through the machine under the user's lock and
// returns the resulting session snapshot. Terminal steps are cleared
// back to Idle with a fresh attempt token before the lock is
// released; the returned snapshot still shows the terminal step so
// the caller can act on it.
func (m *Sessions) Apply(userID int64, ev Event) (Session, Outcome, error) {
	sl := m.slot(userID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	next, outcome, err := Advance(sl.sess, ev, m.currencies.Get)
	if err != nil {
		return sl.sess, 0, err
	}
	if next.Step == StepSubmitted || next.Step == StepCancelled {
		sl.sess = next.reset()
	} else {
		sl.sess = next
	}
	return next, outcome, nil
}

// Peek returns the current session snapshot without advancing it.
func (m *Sessions) Peek(userID int64) Session {
	sl := m.slot(userID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.sess
}

// StillCurrent reports whether the attempt token is still the live
// one. Callers that release the lock around a network fetch check it
// before applying the result; a false answer means the session was
// cancelled or completed meanwhile and the result must be dropped.
func (m *Sessions) StillCurrent(userID int64, attempt uuid.UUID) bool {
	sl := m.slot(userID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.sess.Attempt == attempt
}
