package types

import (
	"context"
	"time"
)

type Tariff struct {
	ID           int64
	Name         string
	Description  string
	Price        int
	DurationDays int
	IsActive     bool
}

// AppliedPayment is the record of a provider payment that has already been
// turned into premium time. The provider payment id is unique: a replayed
// webhook for the same payment inserts nothing and grants nothing.
type AppliedPayment struct {
	PaymentID    string
	TelegramID   int64
	TariffID     int64
	Amount       string
	DurationDays int
	AppliedAt    time.Time
}

type TariffStore interface {
	ListActiveTariffs(ctx context.Context) ([]Tariff, error)
	// GetTariff resolves inactive tariffs too: historical payment callbacks
	// may reference a tariff that is no longer on sale.
	GetTariff(ctx context.Context, id int64) (*Tariff, error)
}
