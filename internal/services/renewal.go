// Package services holds the engines that run on top of the ledger: the
// daily subscription renewal sweep, reminder fan-out and the analysis
// payload builder.
package services

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/ledger"
	"finbot/internal/log"
)

// subscriptionNotePrefix marks auto-charged renewal rows in the ledger.
const subscriptionNotePrefix = "Підписка: "

// Notifier delivers user-facing events. Satisfied by *amqp.Client.
type Notifier interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// NopNotifier drops every event. Used when AMQP is not configured.
type NopNotifier struct{}

func (NopNotifier) PublishNotification(context.Context, *amqp.NotificationMessage) error {
	return nil
}

// RenewalService runs the daily subscription sweep over every user ledger.
type RenewalService struct {
	ledger   *ledger.Service
	notifier Notifier
	log      *log.Logger
	now      func() time.Time
}

func NewRenewalService(ldg *ledger.Service, notifier Notifier, logger *log.Logger) *RenewalService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RenewalService{
		ledger:   ldg,
		notifier: notifier,
		log:      logger.WithComponent(log.ComponentSweep),
		now:      time.Now,
	}
}

// Sweep visits every user table once. Subscriptions due exactly today are
// charged, their due date advanced one month with day-of-month clamping, and
// the user notified. Subscriptions due tomorrow produce a warning
// notification only; any other due date is left alone. Failures are isolated
// per table and per subscription.
func (r *RenewalService) Sweep(ctx context.Context) (notified, charged int, err error) {
	tables, err := r.ledger.UserTables(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list user tables: %w", err)
	}

	today := kyivDay(r.now())
	tomorrow := today.AddDate(0, 0, 1)

	for _, title := range tables {
		n, c, err := r.sweepTable(ctx, title, today, tomorrow)
		notified += n
		charged += c
		if err != nil {
			r.log.ErrorContext(ctx, "Sweep failed for table",
				log.FieldOperation, log.OpSweep, log.FieldTable, title, log.FieldError, err)
		}
	}

	r.log.InfoContext(ctx, "Renewal sweep finished",
		log.FieldOperation, log.OpSweep,
		log.FieldCount, len(tables),
		"notified", notified,
		"charged", charged)
	return notified, charged, nil
}

func (r *RenewalService) sweepTable(ctx context.Context, title string, today, tomorrow time.Time) (notified, charged int, err error) {
	subs, err := r.ledger.SubscriptionsIn(ctx, title)
	if err != nil {
		return 0, 0, err
	}

	for _, sub := range subs {
		due, ok := dates.ParseDay(sub.SubscriptionDue)
		if !ok {
			continue
		}
		switch {
		case due.Equal(today):
			if err := r.charge(ctx, title, sub, due); err != nil {
				r.log.ErrorContext(ctx, "Failed to renew subscription",
					log.FieldTable, title,
					log.FieldSubscription, subscriptionName(sub),
					log.FieldRow, sub.Row,
					log.FieldError, err)
				continue
			}
			notified++
			charged++
		case due.Equal(tomorrow):
			if err := r.warn(ctx, sub); err != nil {
				r.log.ErrorContext(ctx, "Failed to send due-tomorrow warning",
					log.FieldTable, title,
					log.FieldSubscription, subscriptionName(sub),
					log.FieldError, err)
				continue
			}
			notified++
		}
	}
	return notified, charged, nil
}

// charge appends the renewal debit, advances the stored due date one month
// and notifies the user. The debit row records the subscription name and the
// charged due date but is not itself a subscription.
func (r *RenewalService) charge(ctx context.Context, title string, sub core.Transaction, due time.Time) error {
	name := subscriptionName(sub)
	amount := sub.Amount.Abs().Neg()

	_, err := r.ledger.AppendTransactionIn(ctx, title, sub.UserID, ledger.NewTransaction{
		Amount:           amount,
		Category:         sub.Category,
		Note:             subscriptionNotePrefix + name + " (авто)",
		SubscriptionName: name,
		SubscriptionDue:  dates.FormatDay(due),
	})
	if err != nil {
		return fmt.Errorf("append renewal debit: %w", err)
	}

	next := dates.NextChargeDate(due)
	if err := r.ledger.AdvanceSubscriptionDue(ctx, title, sub.Row, dates.FormatDay(next)); err != nil {
		return fmt.Errorf("advance due date: %w", err)
	}

	r.log.InfoContext(ctx, "Charged subscription",
		log.FieldTable, title,
		log.FieldSubscription, name,
		log.FieldAmount, amount.Kopecks,
		log.FieldDueDate, dates.FormatDay(next))

	return r.notifier.PublishNotification(ctx, &amqp.NotificationMessage{
		Kind:             amqp.KindSubscriptionCharged,
		UserID:           sub.UserID,
		SubscriptionName: name,
		Amount:           amount.String(),
		Currency:         sub.Currency,
		DueDate:          dates.FormatDay(next),
	})
}

func (r *RenewalService) warn(ctx context.Context, sub core.Transaction) error {
	return r.notifier.PublishNotification(ctx, &amqp.NotificationMessage{
		Kind:             amqp.KindSubscriptionDue,
		UserID:           sub.UserID,
		SubscriptionName: subscriptionName(sub),
		Amount:           sub.Amount.Abs().Neg().String(),
		Currency:         sub.Currency,
		DueDate:          sub.SubscriptionDue,
	})
}

// SendDailyReminders notifies every reminder subscriber and returns the
// number of events published.
func (r *RenewalService) SendDailyReminders(ctx context.Context) (int, error) {
	userIDs, err := r.ledger.ReminderUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminder users: %w", err)
	}
	sent := 0
	for _, id := range userIDs {
		err := r.notifier.PublishNotification(ctx, &amqp.NotificationMessage{
			Kind:   amqp.KindDailyReminder,
			UserID: id,
		})
		if err != nil {
			r.log.ErrorContext(ctx, "Failed to send reminder",
				log.FieldOperation, log.OpNotify, log.FieldUserID, id, log.FieldError, err)
			continue
		}
		sent++
	}
	r.log.InfoContext(ctx, "Daily reminders sent",
		log.FieldOperation, log.OpNotify, log.FieldCount, sent)
	return sent, nil
}

func subscriptionName(sub core.Transaction) string {
	if sub.SubscriptionName != "" {
		return sub.SubscriptionName
	}
	if sub.Note != "" {
		return sub.Note
	}
	return sub.Category
}

// kyivDay truncates an instant to its Kyiv calendar date, expressed as a UTC
// midnight for comparison with parsed due dates.
func kyivDay(t time.Time) time.Time {
	local := t.In(dates.Kyiv())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
