// Package payments adapts the core to an external Lightning payments
// backend (an LNbits-style wallet RPC). It never talks to a Lightning node
// directly.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/satring/gateway/pkg/logger"

	"go.uber.org/zap"
)

// ErrBackend is returned for any non-2xx response or transport failure from
// the payments backend while creating an invoice.
var ErrBackend = fmt.Errorf("payments backend error")

// Invoice is the result of creating a Lightning invoice.
type Invoice struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// Client is an opaque adapter over the payments backend: create an invoice,
// query whether it has settled. It holds no domain knowledge of macaroons or
// listings.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a Client pointed at baseURL (PAYMENT_URL), authenticating with
// apiKey (PAYMENT_KEY).
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createInvoiceRequest struct {
	Out    bool   `json:"out"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// CreateInvoice mints a fresh invoice for amountSats, memo. Each call mints
// a new invoice; no idempotency is attempted.
func (c *Client) CreateInvoice(ctx context.Context, amountSats int64, memo string) (Invoice, error) {
	body, err := json.Marshal(createInvoiceRequest{Out: false, Amount: amountSats, Memo: memo})
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: encode request: %v", ErrBackend, err)
	}

	url := c.baseURL + "/api/v1/payments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: build request: %v", ErrBackend, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("payments backend unreachable", zap.Error(err), zap.String("url", url))
		return Invoice{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("payments backend returned non-2xx", zap.Int("status", resp.StatusCode))
		return Invoice{}, fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	var inv Invoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		logger.Error("payments backend returned malformed invoice", zap.Error(err))
		return Invoice{}, fmt.Errorf("%w: decode response: %v", ErrBackend, err)
	}
	if inv.PaymentHash == "" || inv.PaymentRequest == "" {
		return Invoice{}, fmt.Errorf("%w: incomplete invoice in response", ErrBackend)
	}

	return inv, nil
}

type paidResponse struct {
	Paid bool `json:"paid"`
}

// IsPaid reports whether the invoice identified by paymentHash has settled.
// Transport failures and non-2xx responses are reported as unpaid
// (fail-closed): an unverifiable invoice must never be treated as paid.
func (c *Client) IsPaid(ctx context.Context, paymentHash string) bool {
	url := fmt.Sprintf("%s/api/v1/payments/%s", c.baseURL, paymentHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Error("failed to build payment-status request", zap.Error(err))
		return false
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("payment-status check failed", zap.Error(err), zap.String("payment_hash", paymentHash))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result paidResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn("malformed payment-status response", zap.Error(err))
		return false
	}

	return result.Paid
}
