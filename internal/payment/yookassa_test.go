package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePayment(t *testing.T) {
	var got createPaymentBody
	var auth, idempotenceKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		auth = r.Header.Get("Authorization")
		idempotenceKey = r.Header.Get("Idempotence-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(paymentObject{
			ID:     "2e8ac2dd-000f-5000-8000-000000000001",
			Status: "pending",
			Confirmation: &confirmation{
				Type:            "redirect",
				ConfirmationURL: "https://yoomoney.ru/checkout/payments/v2?orderId=abc",
			},
		})
	}))
	defer srv.Close()

	c := NewClient("shop-1", "secret-1", "https://t.me/test_bot")
	c.apiBase = srv.URL

	url, id, err := c.CreatePayment(context.Background(), CreateRequest{
		Amount:       299,
		Description:  "1 Месяц",
		TelegramID:   42,
		TariffID:     1,
		DurationDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://yoomoney.ru/checkout/payments/v2?orderId=abc", url)
	assert.Equal(t, "2e8ac2dd-000f-5000-8000-000000000001", id)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.SetBasicAuth("shop-1", "secret-1")
	assert.Equal(t, req.Header.Get("Authorization"), auth)
	assert.NotEmpty(t, idempotenceKey)

	assert.Equal(t, "299.00", got.Amount.Value)
	assert.Equal(t, "RUB", got.Amount.Currency)
	assert.True(t, got.Capture)
	assert.Equal(t, "redirect", got.Confirmation.Type)
	assert.Equal(t, "https://t.me/test_bot", got.Confirmation.ReturnURL)
	assert.Equal(t, "42", got.Metadata.UserID)
	assert.Equal(t, "1", got.Metadata.TariffID)
	assert.Equal(t, "30", got.Metadata.Duration)
}

func TestCreatePaymentNotConfigured(t *testing.T) {
	c := NewClient("", "", "")

	_, _, err := c.CreatePayment(context.Background(), CreateRequest{Amount: 299})

	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreatePaymentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("shop-1", "wrong", "")
	c.apiBase = srv.URL

	_, _, err := c.CreatePayment(context.Background(), CreateRequest{Amount: 299})

	assert.ErrorContains(t, err, "status 401")
}

func TestCreatePaymentIncompleteObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(paymentObject{ID: "p-1"})
	}))
	defer srv.Close()

	c := NewClient("shop-1", "secret-1", "")
	c.apiBase = srv.URL

	_, _, err := c.CreatePayment(context.Background(), CreateRequest{Amount: 299})

	assert.ErrorContains(t, err, "incomplete payment object")
}

func TestMetadataInt64(t *testing.T) {
	obj := NotificationObject{Metadata: map[string]interface{}{
		"user_id":  "42",
		"duration": float64(30),
		"junk":     "not-a-number",
	}}

	v, err := obj.MetadataInt64("user_id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = obj.MetadataInt64("duration")
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)

	_, err = obj.MetadataInt64("junk")
	assert.Error(t, err)

	_, err = obj.MetadataInt64("absent")
	assert.ErrorContains(t, err, "missing")
}
