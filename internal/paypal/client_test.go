// AngelaMos | 2026
// client_test.go

package paypal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

func newTestClient(t *testing.T, orders http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("/v2/checkout/orders", orders)
	mux.HandleFunc("/v2/checkout/orders/", orders)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewClient(config.PayPalConfig{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Currency:     "USD",
		BrandName:    "Aura",
		ReturnURL:    "http://app.test/billing/return",
		CancelURL:    "http://app.test/billing/cancel",
		Timeout:      2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Equal(t, "pay-1", r.Header.Get("PayPal-Request-Id"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body["intent"])
		units := body["purchase_units"].([]any)
		amount := units[0].(map[string]any)["amount"].(map[string]any)
		assert.Equal(t, "9.99", amount["value"])
		assert.Equal(t, "USD", amount["currency_code"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "ORDER-1",
			"status": "CREATED",
			"links": [
				{"rel": "self", "href": "https://api.paypal.test/v2/checkout/orders/ORDER-1"},
				{"rel": "approve", "href": "https://paypal.test/checkoutnow?token=ORDER-1"}
			]
		}`))
	})

	order, err := c.CreateOrder(context.Background(), OrderRequest{
		AmountCents: 999,
		Description: "Aura Creator (monthly)",
		ReferenceID: "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, StatusCreated, order.Status)
	assert.Equal(t, "https://paypal.test/checkoutnow?token=ORDER-1", order.ApproveURL)
}

func TestCaptureOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "ORDER-1",
			"status": "COMPLETED",
			"payer": {"email_address": "fan@example.com"},
			"purchase_units": [{
				"payments": {"captures": [{
					"id": "CAP-9",
					"status": "COMPLETED",
					"amount": {"currency_code": "USD", "value": "199.00"}
				}]}
			}]
		}`))
	})

	capture, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, capture.Status)
	assert.Equal(t, "CAP-9", capture.CaptureID)
	assert.Equal(t, int64(19900), capture.AmountCents)
	assert.Equal(t, "fan@example.com", capture.PayerEmail)
}

func TestCaptureErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "already captured",
			status: http.StatusUnprocessableEntity,
			body:   `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`,
			want:   ErrAlreadyCaptured,
		},
		{
			name:   "not approved",
			status: http.StatusUnprocessableEntity,
			body:   `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`,
			want:   core.ErrConflict,
		},
		{
			name:   "missing order",
			status: http.StatusNotFound,
			body:   `{"name":"RESOURCE_NOT_FOUND","message":"not found"}`,
			want:   core.ErrNotFound,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"name":"INTERNAL_SERVER_ERROR","message":"boom"}`,
			want:   core.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.CaptureOrder(context.Background(), "ORDER-1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "199.00", FormatAmount(19900))

	for in, want := range map[string]int64{"9.99": 999, "10": 1000, "0.5": 50, "199.00": 19900} {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAmount("1.999")
	assert.Error(t, err)
}
