package telegram

import (
	"fmt"

	tgbotapi "github.com/yangrq1018/telegram-bot-api/v5"
)

type Authorizer interface {
	Validate(u tgbotapi.Update) (ok bool, reason string)
}

type allow struct{}

func (a allow) Validate(tgbotapi.Update) (bool, string) {
	return true, ""
}

var PolicyAllow = allow{}

// Operators is the set of principals allowed to approve orders and
// change configuration. An empty set is a distinct locked-down state:
// operator commands deny everyone, nothing falls open.
type Operators struct {
	ids map[int64]struct{}
}

func NewOperators(ids []int64) *Operators {
	o := &Operators{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		o.ids[id] = struct{}{}
	}
	if len(o.ids) == 0 {
		logger.Warn("no operator configured, operator commands are disabled")
	}
	return o
}

func (o *Operators) Contains(userID int64) bool {
	_, ok := o.ids[userID]
	return ok
}

func (o *Operators) Empty() bool {
	return len(o.ids) == 0
}

// IDs returns the configured operator chat ids.
func (o *Operators) IDs() []int64 {
	out := make([]int64, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	return out
}

func (o *Operators) Validate(u tgbotapi.Update) (bool, string) {
	if u.Message == nil || u.Message.From == nil {
		return false, "no sender"
	}
	if o.Empty() {
		return false, "no operator configured"
	}
	if !o.Contains(int64(u.Message.From.ID)) {
		return false, fmt.Sprintf("user %d is not an operator", u.Message.From.ID)
	}
	return true, ""
}
