package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const userKeyPrefix = "user:"

// Users records every chat that has talked to the bot, so the
// operator can broadcast to all of them later.
type Users struct {
	store Store
}

func NewUsers(store Store) *Users {
	return &Users{store: store}
}

func (u *Users) Remember(ctx context.Context, userID int64) error {
	key := userKeyPrefix + strconv.FormatInt(userID, 10)
	return u.store.Put(ctx, key, []byte(strconv.FormatInt(userID, 10)))
}

func (u *Users) All(ctx context.Context) ([]int64, error) {
	entries, err := u.store.List(ctx, userKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(entries))
	for key := range entries {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, userKeyPrefix), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt user key %s: %w", key, err)
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
