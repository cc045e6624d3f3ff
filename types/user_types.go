package types

import (
	"context"
	"time"
)

type UsageKind string

const (
	UsageText  UsageKind = "text"
	UsageImage UsageKind = "image"
)

type Account struct {
	TelegramID   int64
	Username     string
	FullName     string
	TextUsage    int
	ImageUsage   int
	PremiumUntil *time.Time
	JoinedAt     time.Time
}

// PremiumActive derives premium status from the stored expiry.
// The status is computed, never persisted as a flag.
func PremiumActive(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}

func (a *Account) IsPremium(now time.Time) bool {
	return PremiumActive(a.PremiumUntil, now)
}

type Stats struct {
	TotalUsers    int64
	ActivePremium int64
	TotalText     int64
	TotalImages   int64
}

type AccountStore interface {
	GetOrCreateAccount(ctx context.Context, telegramID int64, username, fullName string) (*Account, error)
	IncrementUsage(ctx context.Context, telegramID int64, kind UsageKind) error

	ExtendPremium(ctx context.Context, telegramID int64, days int) (time.Time, error)
	RevokePremium(ctx context.Context, telegramID int64) error

	// ApplyPayment records the payment id and extends premium in one atomic
	// step. applied is false when the id was already recorded; a failed extend
	// must leave no trace of the payment id so a redelivery can succeed.
	ApplyPayment(ctx context.Context, p AppliedPayment) (applied bool, newUntil time.Time, err error)

	ListAccountIDs(ctx context.Context) ([]int64, error)
	AggregateStats(ctx context.Context) (*Stats, error)
}
