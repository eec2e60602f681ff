// Package bridge talks to an external signer daemon over HTTP. The
// daemon owns keys and user consent; this client only carries transfer
// intents out and opaque witnesses back.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const (
	identityPath = "/wallet/identity"
	signPath     = "/wallet/sign"

	maxResponseBytes      = 1 << 20
	defaultRequestTimeout = 30 * time.Second
)

// rejectionCode is the daemon's error code for a user pressing "deny"
// on the signing prompt.
const rejectionCode = "user_rejected"

type Signer struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.Wallet = Signer{}

type identityResponse struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

type signErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Connect fetches the daemon's wallet identity. Any failure to reach
// the daemon or to get a usable identity is ErrWalletUnavailable; there
// is no payment path without a wallet.
func (s Signer) Connect(ctx context.Context) (domain.WalletIdentity, error) {
	endpoint, err := buildAPIURL(s.BaseURL, identityPath)
	if err != nil {
		return domain.WalletIdentity{}, err
	}

	requestCtx, cancel := s.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.WalletIdentity{}, fmt.Errorf("create identity request: %w", err)
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return domain.WalletIdentity{}, fmt.Errorf("%w: %v", domain.ErrWalletUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.WalletIdentity{}, fmt.Errorf("%w: signer answered status %d", domain.ErrWalletUnavailable, resp.StatusCode)
	}

	var payload identityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return domain.WalletIdentity{}, fmt.Errorf("%w: decode identity: %v", domain.ErrWalletUnavailable, err)
	}
	if payload.Address == "" {
		return domain.WalletIdentity{}, fmt.Errorf("%w: signer has no address", domain.ErrWalletUnavailable)
	}

	return domain.WalletIdentity{Address: payload.Address, Network: payload.Network}, nil
}

// Sign asks the daemon to authorize a transfer. The witness comes back
// opaque and travels on to the verification endpoint untouched. A deny
// from the user is ErrUserRejected; any other signer failure is
// ErrSigningFailed; an unreachable daemon is ErrWalletUnavailable.
func (s Signer) Sign(ctx context.Context, intent domain.TransferIntent) (domain.PaymentWitness, error) {
	endpoint, err := buildAPIURL(s.BaseURL, signPath)
	if err != nil {
		return domain.PaymentWitness{}, err
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return domain.PaymentWitness{}, fmt.Errorf("encode transfer intent: %w", err)
	}

	requestCtx, cancel := s.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.PaymentWitness{}, fmt.Errorf("create sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return domain.PaymentWitness{}, fmt.Errorf("%w: %v", domain.ErrWalletUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.PaymentWitness{}, decodeSignError(resp)
	}

	var witness domain.PaymentWitness
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&witness); err != nil {
		return domain.PaymentWitness{}, fmt.Errorf("%w: decode witness: %v", domain.ErrSigningFailed, err)
	}
	if witness.Empty() {
		return domain.PaymentWitness{}, fmt.Errorf("%w: signer returned an empty witness", domain.ErrSigningFailed)
	}

	return witness, nil
}

func decodeSignError(resp *http.Response) error {
	var payload signErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return fmt.Errorf("%w: status %d", domain.ErrSigningFailed, resp.StatusCode)
	}

	if payload.Code == rejectionCode {
		if payload.Error != "" {
			return fmt.Errorf("%w: %s", domain.ErrUserRejected, payload.Error)
		}
		return domain.ErrUserRejected
	}

	if payload.Error != "" {
		return fmt.Errorf("%w: %s", domain.ErrSigningFailed, payload.Error)
	}

	return fmt.Errorf("%w: status %d", domain.ErrSigningFailed, resp.StatusCode)
}

func (s Signer) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

func (s Signer) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := s.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("wallet bridge URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse wallet bridge URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("wallet bridge URL must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("wallet bridge URL host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse wallet bridge path: %w", err)
	}

	return endpoint.String(), nil
}
