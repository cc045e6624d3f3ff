// Package webhook receives asynchronous payment notifications from YooKassa
// and turns each genuinely new successful payment into exactly one premium
// extension. The provider retries delivery until it gets a 2xx, so the
// response code is the contract: 400 tells it the body is garbage, 200 tells
// it to stop, 500 asks it to try again.
package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/BatmanBruc/bat-bot-neuro/internal/payment"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

const Path = "/webhook/yookassa"

type Ledger interface {
	ApplyPayment(ctx context.Context, p types.AppliedPayment) (applied bool, newUntil time.Time, err error)
}

type Notifier interface {
	NotifyPaymentApplied(ctx context.Context, telegramID int64, until time.Time) error
}

type Handler struct {
	ledger   Ledger
	notifier Notifier
}

func NewHandler(ledger Ledger, notifier Notifier) *Handler {
	return &Handler{ledger: ledger, notifier: notifier}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(Path, h.HandleYooKassa).Methods(http.MethodPost)
	return r
}

func (h *Handler) HandleYooKassa(w http.ResponseWriter, r *http.Request) {
	var n payment.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		// Garbage body: acknowledge as a client error, nothing to retry.
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Other event types (waiting_for_capture, canceled, refunds) are
	// intentionally ignored but still acknowledged.
	if n.Event != payment.EventPaymentSucceeded {
		w.WriteHeader(http.StatusOK)
		return
	}

	telegramID, err := metadataField(n.Object, "user_id", "account_id")
	if err != nil {
		log.Printf("Webhook: payment %s: %v", n.Object.ID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	duration, err := metadataField(n.Object, "duration", "duration_days")
	if err != nil {
		log.Printf("Webhook: payment %s: %v", n.Object.ID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	tariffID, _ := metadataField(n.Object, "tariff_id")

	ctx := r.Context()
	applied, newUntil, err := h.ledger.ApplyPayment(ctx, types.AppliedPayment{
		PaymentID:    n.Object.ID,
		TelegramID:   telegramID,
		TariffID:     tariffID,
		Amount:       n.Object.AmountValue(),
		DurationDays: int(duration),
	})
	if err != nil {
		// The one failure the provider's retry is relied on for.
		log.Printf("Webhook: payment %s: ledger failure: %v", n.Object.ID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !applied {
		log.Printf("Webhook: payment %s already applied, replay ignored", n.Object.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	log.Printf("Webhook: payment %s applied: user=%d days=%d amount=%s", n.Object.ID, telegramID, duration, n.Object.AmountValue())

	// Best effort only. The subscription is already granted; an unreachable
	// user must not make the provider re-deliver.
	if h.notifier != nil {
		if err := h.notifier.NotifyPaymentApplied(ctx, telegramID, newUntil); err != nil {
			log.Printf("Webhook: payment %s: failed to notify user %d: %v", n.Object.ID, telegramID, err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func metadataField(obj payment.NotificationObject, names ...string) (int64, error) {
	var err error
	for _, name := range names {
		var v int64
		v, err = obj.MetadataInt64(name)
		if err == nil {
			return v, nil
		}
	}
	return 0, err
}
