// Package subscription is the single authority over premium_until. Everything
// that grants or removes premium time goes through the Ledger; handlers and
// the payment webhook never touch the column directly.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BatmanBruc/bat-bot-neuro/types"
)

var ErrInvalidDuration = errors.New("duration must be positive")

type Ledger struct {
	store types.AccountStore
}

func NewLedger(store types.AccountStore) *Ledger {
	return &Ledger{store: store}
}

// Extend grants days of premium. The store performs the read-modify-write
// atomically per account: base is the later of now and the current expiry, so
// renewing an active subscription stacks on top of the remaining time and a
// lapsed one restarts from now.
func (l *Ledger) Extend(ctx context.Context, telegramID int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDuration, days)
	}
	return l.store.ExtendPremium(ctx, telegramID, days)
}

// Revoke pushes premium_until strictly into the past, deactivating premium
// immediately regardless of any future-dated expiry.
func (l *Ledger) Revoke(ctx context.Context, telegramID int64) error {
	return l.store.RevokePremium(ctx, telegramID)
}

// ApplyPayment extends premium exactly once per provider payment id. The store
// records the id and extends in a single transaction: a recorded id means the
// payment is a webhook replay and no time is granted, while a failed extend
// leaves the id unrecorded so the provider's redelivery still grants it.
func (l *Ledger) ApplyPayment(ctx context.Context, p types.AppliedPayment) (applied bool, newUntil time.Time, err error) {
	if p.DurationDays <= 0 {
		return false, time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDuration, p.DurationDays)
	}
	return l.store.ApplyPayment(ctx, p)
}
