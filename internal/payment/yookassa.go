// Package payment talks to the YooKassa API: creating payments with the
// metadata the webhook later echoes back, and modelling the notification
// payload the webhook receives.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const defaultAPIBase = "https://api.yookassa.ru/v3"

const EventPaymentSucceeded = "payment.succeeded"

var ErrNotConfigured = errors.New("yookassa credentials are not configured")

type Client struct {
	httpClient *http.Client
	apiBase    string
	shopID     string
	secretKey  string
	returnURL  string
}

func NewClient(shopID, secretKey, returnURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    defaultAPIBase,
		shopID:     shopID,
		secretKey:  secretKey,
		returnURL:  returnURL,
	}
}

type CreateRequest struct {
	Amount       int // whole rubles
	Description  string
	TelegramID   int64
	TariffID     int64
	DurationDays int
}

type Metadata struct {
	UserID   string `json:"user_id"`
	TariffID string `json:"tariff_id"`
	Duration string `json:"duration"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentBody struct {
	Amount       amount       `json:"amount"`
	Confirmation confirmation `json:"confirmation"`
	Capture      bool         `json:"capture"`
	Description  string       `json:"description"`
	Metadata     Metadata     `json:"metadata"`
}

type paymentObject struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Confirmation *confirmation `json:"confirmation,omitempty"`
	Description  string        `json:"description,omitempty"`
}

// CreatePayment registers a payment and returns the confirmation URL the user
// pays at, plus the provider payment id. The metadata round-trips through
// YooKassa and comes back in the success webhook, which is how the webhook
// knows whom to grant what.
func (c *Client) CreatePayment(ctx context.Context, req CreateRequest) (paymentURL, paymentID string, err error) {
	if c.shopID == "" || c.secretKey == "" {
		return "", "", ErrNotConfigured
	}

	body := createPaymentBody{
		Amount: amount{
			Value:    strconv.Itoa(req.Amount) + ".00",
			Currency: "RUB",
		},
		Confirmation: confirmation{
			Type:      "redirect",
			ReturnURL: c.returnURL,
		},
		Capture:     true,
		Description: req.Description,
		Metadata: Metadata{
			UserID:   strconv.FormatInt(req.TelegramID, 10),
			TariffID: strconv.FormatInt(req.TariffID, 10),
			Duration: strconv.Itoa(req.DurationDays),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/payments", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	httpReq.SetBasicAuth(c.shopID, c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("yookassa: create payment status %d", resp.StatusCode)
	}

	var obj paymentObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return "", "", err
	}
	if obj.Confirmation == nil || obj.Confirmation.ConfirmationURL == "" || obj.ID == "" {
		return "", "", fmt.Errorf("yookassa: incomplete payment object")
	}
	return obj.Confirmation.ConfirmationURL, obj.ID, nil
}

// Notification is the webhook body YooKassa POSTs on payment events.
type Notification struct {
	Type   string             `json:"type"`
	Event  string             `json:"event"`
	Object NotificationObject `json:"object"`
}

type NotificationObject struct {
	ID       string                 `json:"id"`
	Status   string                 `json:"status"`
	Amount   amount                 `json:"amount"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (o NotificationObject) AmountValue() string {
	return o.Amount.Value
}

// MetadataInt64 reads a numeric metadata field set at payment-creation time.
// The provider may echo values as strings or numbers depending on how the
// payment was created, so both are accepted.
func (o NotificationObject) MetadataInt64(key string) (int64, error) {
	raw, ok := o.Metadata[key]
	if !ok {
		return 0, fmt.Errorf("metadata field %q is missing", key)
	}
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("metadata field %q is not a number: %q", key, v)
		}
		return n, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("metadata field %q is not a number", key)
	}
}
