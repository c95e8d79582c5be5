package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const currencyKeyPrefix = "currency:"

// Currency is an operator-configured tradable asset. Markups are
// fractions, 0 <= m < 1. Readers always get a value copy, never a
// reference into live config.
type Currency struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	BuyMarkup  decimal.Decimal `json:"buy_markup"`
	SellMarkup decimal.Decimal `json:"sell_markup"`
}

var markupCeiling = decimal.NewFromInt(1)

func validateMarkup(m decimal.Decimal) error {
	if m.IsNegative() || m.GreaterThanOrEqual(markupCeiling) {
		return fmt.Errorf("markup %s out of range [0, 1)", m)
	}
	return nil
}

// Currencies owns the configured currency set. Writes go through a
// single mutex and are persisted to the Store before the cache is
// touched; reads return snapshots.
type Currencies struct {
	store Store

	mu    sync.RWMutex
	cache map[string]Currency
}

func NewCurrencies(ctx context.Context, store Store) (*Currencies, error) {
	c := &Currencies{
		store: store,
		cache: make(map[string]Currency),
	}
	entries, err := store.List(ctx, currencyKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("load currencies: %w", err)
	}
	for key, raw := range entries {
		var cur Currency
		if err = json.Unmarshal(raw, &cur); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		c.cache[cur.Symbol] = cur
	}
	return c, nil
}

// Add configures a new currency with zero markups. A symbol that is
// already configured is rejected, so a repeated add cannot wipe the
// live markups.
func (c *Currencies) Add(ctx context.Context, symbol, name string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrUnknownSymbol
	}
	cur := Currency{
		Symbol:     symbol,
		Name:       name,
		BuyMarkup:  decimal.Zero,
		SellMarkup: decimal.Zero,
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[symbol]; ok {
		return ErrDuplicateSymbol
	}
	if err = c.store.Put(ctx, currencyKeyPrefix+symbol, raw); err != nil {
		return err
	}
	c.cache[symbol] = cur
	return nil
}

// Remove deletes a currency from the configured set. Orders already
// recorded against the symbol are untouched.
func (c *Currencies) Remove(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[symbol]; !ok {
		return ErrUnknownSymbol
	}
	if err := c.store.Delete(ctx, currencyKeyPrefix+symbol); err != nil {
		return err
	}
	delete(c.cache, symbol)
	return nil
}

func (c *Currencies) SetMarkup(ctx context.Context, symbol string, buy, sell decimal.Decimal) error {
	if err := validateMarkup(buy); err != nil {
		return err
	}
	if err := validateMarkup(sell); err != nil {
		return err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.RLock()
	cur, ok := c.cache[symbol]
	c.mu.RUnlock()
	if !ok {
		return ErrUnknownSymbol
	}
	cur.BuyMarkup = buy
	cur.SellMarkup = sell
	return c.put(ctx, cur)
}

// Get returns a snapshot of the currency config at call time, so an
// operator edit takes effect on the next quote, not mid-quote.
func (c *Currencies) Get(symbol string) (Currency, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.cache[strings.ToUpper(strings.TrimSpace(symbol))]
	return cur, ok
}

func (c *Currencies) List() []Currency {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Currency, 0, len(c.cache))
	for _, cur := range c.cache {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (c *Currencies) put(ctx context.Context, cur Currency) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err = c.store.Put(ctx, currencyKeyPrefix+cur.Symbol, raw); err != nil {
		return err
	}
	c.cache[cur.Symbol] = cur
	return nil
}
