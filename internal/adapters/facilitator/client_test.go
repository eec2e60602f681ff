package facilitator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

func testSubmission() ports.Submission {
	return ports.Submission{
		UserID: "user-1",
		Requirement: domain.PaymentRequirement{
			Amount:   decimal.RequireFromString("0.002"),
			Currency: "USDC",
			Network:  "base",
			Address:  "0xabc0000000000000000000000000000000000001",
			Resource: "getAccounts",
		},
		Witness: domain.PaymentWitness{
			Scheme:  "exact",
			Network: "base",
			Payload: json.RawMessage(`{"signature":"0xsig","authorization":{"from":"0xwallet"}}`),
		},
		Method: "getAccounts",
	}
}

func TestSubmitSendsWitnessOutOfBand(t *testing.T) {
	t.Parallel()

	var captured struct {
		method      string
		path        string
		contentType string
		userID      string
		payment     string
		body        []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.contentType = r.Header.Get("Content-Type")
		captured.userID = r.Header.Get("X-User-Id")
		captured.payment = r.Header.Get("X-PAYMENT")
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL}
	require.NoError(t, client.Submit(context.Background(), testSubmission()))

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/invoke", captured.path)
	assert.Equal(t, "application/json", captured.contentType)
	assert.Equal(t, "user-1", captured.userID)

	raw, err := base64.StdEncoding.DecodeString(captured.payment)
	require.NoError(t, err, "witness header must be base64")
	var witness domain.PaymentWitness
	require.NoError(t, json.Unmarshal(raw, &witness))
	assert.Equal(t, "exact", witness.Scheme)
	assert.Equal(t, "base", witness.Network)
	assert.JSONEq(t, `{"signature":"0xsig","authorization":{"from":"0xwallet"}}`, string(witness.Payload))

	var body invokeRequest
	require.NoError(t, json.Unmarshal(captured.body, &body))
	assert.Equal(t, "getAccounts", body.Method)
	assert.NotNil(t, body.Params)
	assert.NotContains(t, string(captured.body), "signature", "witness must never ride in the body")
}

func TestSubmitVerificationRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantReason string
	}{
		{name: "string error", status: 402, body: `{"error": "insufficient funds"}`, wantReason: "insufficient funds"},
		{name: "nested error", status: 403, body: `{"error": {"code": 1001, "message": "bad witness"}}`, wantReason: "bad witness"},
		{name: "message field", status: 400, body: `{"message": "unknown network"}`, wantReason: "unknown network"},
		{name: "unparseable body", status: 500, body: `<html>boom</html>`, wantReason: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			client := Client{BaseURL: server.URL}
			err := client.Submit(context.Background(), testSubmission())

			var verr *domain.VerificationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.status, verr.StatusCode)
			assert.Equal(t, tc.wantReason, verr.Reason)
		})
	}
}

func TestSubmitNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := Client{BaseURL: server.URL}
	err := client.Submit(context.Background(), testSubmission())

	require.Error(t, err)
	var verr *domain.VerificationError
	assert.False(t, errors.As(err, &verr), "transport failures are not verification rejections")
	assert.Contains(t, err.Error(), "perform verification request")
}

func TestSubmitRefusesEmptyWitness(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	t.Cleanup(server.Close)

	sub := testSubmission()
	sub.Witness = domain.PaymentWitness{}

	client := Client{BaseURL: server.URL}
	err := client.Submit(context.Background(), sub)

	require.ErrorContains(t, err, "witness is empty")
	assert.Zero(t, calls)
}

func TestStatusFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, "user-1", r.Header.Get("X-User-Id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticated": true, "usage": {"total_paid": "12.3456"}}`))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL}
	status, err := client.Status(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, status.Authenticated)
	require.True(t, status.TotalPaid.Valid)
	assert.True(t, status.TotalPaid.Decimal.Equal(decimal.RequireFromString("12.3456")))
}

func TestStatusWithoutUsageBlock(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"authenticated": false}`))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL}
	status, err := client.Status(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, status.Authenticated)
	assert.False(t, status.TotalPaid.Valid)
}

func TestStatusNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL}
	_, err := client.Status(context.Background(), "user-1")

	assert.ErrorContains(t, err, "status 503")
}

func TestBuildAPIURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		want    string
		wantErr string
	}{
		{name: "plain base", base: "https://api.example.com", want: "https://api.example.com/invoke"},
		{name: "trailing slash", base: "https://api.example.com/", want: "https://api.example.com/invoke"},
		{name: "base with prefix", base: "https://api.example.com/x402/", want: "https://api.example.com/x402/invoke"},
		{name: "empty", base: "", wantErr: "base URL is required"},
		{name: "bad scheme", base: "ftp://api.example.com", wantErr: "http or https"},
		{name: "no host", base: "https://", wantErr: "missing a host"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildAPIURL(tc.base, invokePath)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
