package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is owned exclusively by the Ledger. Everyone else reads
// copies and requests transitions through SetStatus.
type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Direction   Direction       `json:"direction"`
	Symbol      string          `json:"symbol"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	ProofRef    string          `json:"proof_ref"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	orderKeyPrefix = "order:id:"
	orderSeqKey    = "order:seq"
)

func orderKey(id int64) string {
	// zero-padded so prefix listing sorts oldest first
	return fmt.Sprintf("%s%012d", orderKeyPrefix, id)
}

// Ledger assigns sequential order ids and enforces the status
// lifecycle: PENDING is the only initial status, CONFIRMED and
// CANCELLED are terminal.
type Ledger struct {
	store Store
	mu    sync.Mutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Create(ctx context.Context, userID int64, d Direction, symbol string, amount decimal.Decimal, destination, proofRef string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, err := l.nextID(ctx)
	if err != nil {
		return 0, err
	}
	o := Order{
		ID:          id,
		UserID:      userID,
		Direction:   d,
		Symbol:      symbol,
		Amount:      amount,
		Destination: destination,
		ProofRef:    proofRef,
		Status:      OrderPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err = l.write(ctx, o); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx, id)
}

// SetStatus applies one of the two legal transitions. Everything else,
// including a second terminal request racing the first, returns
// ErrInvalidTransition and leaves the order untouched.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status OrderStatus) (Order, error) {
	if status != OrderConfirmed && status != OrderCancelled {
		return Order{}, ErrInvalidTransition
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, err := l.read(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != OrderPending {
		return o, ErrInvalidTransition
	}
	o.Status = status
	if err = l.write(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListPending returns pending orders oldest first.
func (l *Ledger) ListPending(ctx context.Context) ([]Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.store.List(ctx, orderKeyPrefix)
	if err != nil {
		return nil, err
	}
	var out []Order
	for key, raw := range entries {
		var o Order
		if err = json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if o.Status == OrderPending {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) read(ctx context.Context, id int64) (Order, error) {
	raw, err := l.store.Get(ctx, orderKey(id))
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err = json.Unmarshal(raw, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (l *Ledger) write(ctx context.Context, o Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return l.store.Put(ctx, orderKey(o.ID), raw)
}

func (l *Ledger) nextID(ctx context.Context) (int64, error) {
	var seq int64
	raw, err := l.store.Get(ctx, orderSeqKey)
	switch {
	case err == nil:
		seq, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt order sequence: %w", err)
		}
	case errors.Is(err, ErrNotFound):
	default:
		return 0, err
	}
	seq++
	if err = l.store.Put(ctx, orderSeqKey, []byte(strconv.FormatInt(seq, 10))); err != nil {
		return 0, err
	}
	return seq, nil
}
