// AngelaMos | 2026
// client.go

package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

const (
	StatusCreated             = "CREATED"
	StatusApproved            = "APPROVED"
	StatusCompleted           = "COMPLETED"
	StatusPayerActionRequired = "PAYER_ACTION_REQUIRED"
	StatusVoided              = "VOIDED"
)

const (
	issueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
	issueOrderNotApproved     = "ORDER_NOT_APPROVED"
	maxErrorBody              = 16 << 10
)

var (
	// ErrAlreadyCaptured is returned when PayPal reports the order was
	// captured by an earlier request.
	ErrAlreadyCaptured = errors.New("order already captured")
	// ErrNotApproved is returned when the buyer has not approved the order.
	ErrNotApproved = errors.New("order not approved by payer")
)

type OrderRequest struct {
	AmountCents int64
	Currency    string
	Description string
	// ReferenceID is echoed back by PayPal and doubles as the idempotency
	// key for creation.
	ReferenceID string
	CustomID    string
}

type Order struct {
	ID         string
	Status     string
	ApproveURL string
}

type Capture struct {
	OrderID     string
	Status      string
	CaptureID   string
	AmountCents int64
	Currency    string
	PayerEmail  string
}

// Client calls the PayPal Orders v2 API with an app access token obtained
// through the client credentials grant.
type Client struct {
	baseURL   string
	currency  string
	brandName string
	returnURL string
	cancelURL string
	http      *http.Client
	logger    *slog.Logger
}

func NewClient(cfg config.PayPalConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tokenCtx := context.WithValue(
		context.Background(),
		oauth2.HTTPClient,
		&http.Client{Timeout: timeout},
	)
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:   base,
		currency:  cfg.Currency,
		brandName: cfg.BrandName,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		http:      httpClient,
		logger:    logger.With("component", "paypal"),
	}
}

func (c *Client) Currency() string {
	return c.currency
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.ReferenceID,
			"custom_id":    req.CustomID,
			"description":  req.Description,
			"amount": map[string]string{
				"currency_code": currency,
				"value":         FormatAmount(req.AmountCents),
			},
		}},
		"application_context": map[string]string{
			"brand_name":          c.brandName,
			"user_action":         "PAY_NOW",
			"shipping_preference": "NO_SHIPPING",
			"return_url":          c.returnURL,
			"cancel_url":          c.cancelURL,
		},
	}

	body, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", req.ReferenceID, payload)
	if err != nil {
		return nil, fmt.Errorf("create paypal order: %w", err)
	}

	order := &Order{
		ID:     gjson.GetBytes(body, "id").String(),
		Status: gjson.GetBytes(body, "status").String(),
	}
	order.ApproveURL = gjson.GetBytes(body, `links.#(rel=="approve").href`).String()
	if order.ApproveURL == "" {
		order.ApproveURL = gjson.GetBytes(body, `links.#(rel=="payer-action").href`).String()
	}

	if order.ID == "" {
		return nil, fmt.Errorf("create paypal order: response without id: %w", core.ErrUpstream)
	}

	c.logger.Info("paypal order created", "order_id", order.ID, "status", order.Status)
	return order, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"

	body, err := c.do(ctx, http.MethodPost, path, "capture-"+orderID, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("capture paypal order %s: %w", orderID, err)
	}

	capture, err := parseCapture(body)
	if err != nil {
		return nil, fmt.Errorf("capture paypal order %s: %w", orderID, err)
	}

	c.logger.Info("paypal order captured",
		"order_id", capture.OrderID,
		"status", capture.Status,
		"capture_id", capture.CaptureID,
	)
	return capture, nil
}

// GetOrder reads an order, including any completed capture.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Capture, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID)

	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, fmt.Errorf("get paypal order %s: %w", orderID, err)
	}

	return parseCapture(body)
}

func parseCapture(body []byte) (*Capture, error) {
	result := gjson.ParseBytes(body)
	capture := result.Get("purchase_units.0.payments.captures.0")

	out := &Capture{
		OrderID:    result.Get("id").String(),
		Status:     result.Get("status").String(),
		CaptureID:  capture.Get("id").String(),
		Currency:   capture.Get("amount.currency_code").String(),
		PayerEmail: result.Get("payer.email_address").String(),
	}

	if v := capture.Get("amount.value"); v.Exists() {
		cents, err := ParseAmount(v.String())
		if err != nil {
			return nil, fmt.Errorf("parse capture amount: %w", err)
		}
		out.AmountCents = cents
	}

	return out, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path, requestID string,
	payload any,
) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal request: %v: %w", err, core.ErrUpstream)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paypal response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, apiError(resp.StatusCode, body)
}

func apiError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	result := gjson.ParseBytes(body)
	name := result.Get("name").String()
	message := result.Get("message").String()
	issue := result.Get("details.0.issue").String()

	switch issue {
	case issueOrderAlreadyCaptured:
		return ErrAlreadyCaptured
	case issueOrderNotApproved:
		return fmt.Errorf("%w: %w", ErrNotApproved, core.ErrConflict)
	}

	if status == http.StatusNotFound || name == "RESOURCE_NOT_FOUND" {
		return fmt.Errorf("paypal %s: %s: %w", name, message, core.ErrNotFound)
	}

	if name == "" {
		name = strconv.Itoa(status)
	}
	if issue != "" {
		message = message + " (" + issue + ")"
	}
	return fmt.Errorf("paypal %s: %s: %w", name, message, core.ErrUpstream)
}

// FormatAmount renders cents as a PayPal decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ParseAmount converts a PayPal decimal string such as "19.99" to cents.
func ParseAmount(v string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(v), ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", v)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", v, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", v, err)
	}

	return w*100 + f, nil
}
