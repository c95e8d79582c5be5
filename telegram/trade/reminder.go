package trade

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/muzaffarov/exchange-bot/exchange"
	"github.com/muzaffarov/exchange-bot/telegram"
)

// Reminder nags the operators about orders that sat in PENDING for a
// whole interval.
type Reminder struct {
	ledger    *exchange.Ledger
	operators *telegram.Operators
	interval  time.Duration
	scheduler *gocron.Scheduler
}

func NewReminder(ledger *exchange.Ledger, operators *telegram.Operators, interval time.Duration) *Reminder {
	return &Reminder{
		ledger:    ledger,
		operators: operators,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (r *Reminder) Start(bot *telegram.Bot) error {
	if r.operators.Empty() {
		logger.Warn("pending reminder idle: no operator configured")
		return nil
	}
	_, err := r.scheduler.Every(r.interval).Do(func() {
		orders, err := r.ledger.ListPending(context.Background())
		if err != nil {
			logger.Errorf("pending reminder: %v", err)
			return
		}
		if len(orders) == 0 {
			return
		}
		for _, opID := range r.operators.IDs() {
			bot.Sendf(opID, "%d order(s) still pending, oldest is #%d (%s). See /pending.",
				len(orders), orders[0].ID, orders[0].CreatedAt.Format("2006-01-02 15:04"))
		}
	})
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	return nil
}

func (r *Reminder) Stop() {
	r.scheduler.Stop()
}
