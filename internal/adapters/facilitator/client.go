package facilitator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const (
	invokePath = "/invoke"
	statusPath = "/status"

	// headerPayment carries the witness out-of-band as base64-encoded
	// JSON, per the x402 convention. The body never contains it.
	headerPayment = "X-PAYMENT"
	headerUserID  = "X-User-Id"

	maxResponseBytes      = 1 << 20
	defaultRequestTimeout = 30 * time.Second
)

// Client talks to the verification endpoint. Submit performs exactly
// one call per invocation; retry policy belongs to the caller, and the
// caller is told not to have one.
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.Facilitator = Client{}

type invokeRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type statusResponse struct {
	Authenticated bool `json:"authenticated"`
	Usage         *struct {
		TotalPaid decimal.Decimal `json:"total_paid"`
	} `json:"usage"`
}

type errorResponse struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func (c Client) Submit(ctx context.Context, sub ports.Submission) error {
	endpoint, err := buildAPIURL(c.BaseURL, invokePath)
	if err != nil {
		return err
	}
	if sub.Witness.Empty() {
		return fmt.Errorf("submission witness is empty")
	}

	witness, err := encodeWitness(sub.Witness)
	if err != nil {
		return err
	}

	params := sub.Params
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(invokeRequest{Method: sub.Method, Params: params})
	if err != nil {
		return fmt.Errorf("encode invocation body: %w", err)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, sub.UserID)
	req.Header.Set(headerPayment, witness)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("perform verification request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	return &domain.VerificationError{
		StatusCode: resp.StatusCode,
		Reason:     decodeErrorReason(resp),
	}
}

func (c Client) Status(ctx context.Context, userID string) (ports.BillingStatus, error) {
	endpoint, err := buildAPIURL(c.BaseURL, statusPath)
	if err != nil {
		return ports.BillingStatus{}, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.BillingStatus{}, fmt.Errorf("create status request: %w", err)
	}
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return ports.BillingStatus{}, fmt.Errorf("fetch billing status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ports.BillingStatus{}, fmt.Errorf("fetch billing status: status %d", resp.StatusCode)
	}

	var payload statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return ports.BillingStatus{}, fmt.Errorf("decode status response: %w", err)
	}

	status := ports.BillingStatus{Authenticated: payload.Authenticated}
	if payload.Usage != nil {
		status.TotalPaid = decimal.NewNullDecimal(payload.Usage.TotalPaid)
	}

	return status, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func encodeWitness(witness domain.PaymentWitness) (string, error) {
	raw, err := json.Marshal(witness)
	if err != nil {
		return "", fmt.Errorf("encode payment witness: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeErrorReason pulls a human-readable reason out of an error body.
// Backends answer with either {"error": "..."}, {"error": {"message":
// "..."}} or {"message": "..."}; anything else yields an empty reason.
func decodeErrorReason(resp *http.Response) string {
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil {
		return text
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil {
		return nested.Message
	}

	return ""
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", fmt.Errorf("facilitator base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse facilitator base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("facilitator base URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("facilitator base URL is missing a host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	return u.String(), nil
}
