package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urugendo/bustickets/config"
)

func mtnTestConfig(baseURL string) config.MTNConfig {
	return config.MTNConfig{
		BaseURL:         baseURL,
		SubscriptionKey: "sub-key",
		APIUser:         "api-user",
		APIKey:          "api-key",
		TargetEnv:       "sandbox",
		Currency:        "UGX",
	}
}

func mtnFakeServer(t *testing.T, tokenCalls *int64, initiateStatus int, statusBody mtnStatusResponse) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/collection/token/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "api-user", user)
		assert.Equal(t, "api-key", pass)
		assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		json.NewEncoder(w).Encode(mtnTokenResponse{AccessToken: "token-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/collection/v1_0/requesttopay/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(statusBody)
	})
	mux.HandleFunc("/collection/v1_0/requesttopay", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Reference-Id"))
		assert.Equal(t, "sandbox", r.Header.Get("X-Target-Environment"))
		w.WriteHeader(initiateStatus)
	})
	return httptest.NewServer(mux)
}

func TestMTNGateway_Initiate(t *testing.T) {
	var tokenCalls int64
	server := mtnFakeServer(t, &tokenCalls, http.StatusAccepted, mtnStatusResponse{})
	defer server.Close()

	gateway := NewMTNGateway(mtnTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{
		ExternalID:  "ext-123",
		AmountCents: 2500000,
		PhoneNumber: "256772000001",
		Reference:   "TKT-AAAA11112222",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), tokenCalls)
}

// Sub-unit amounts must survive the cents-to-decimal rendering; truncating
// 2550 cents to "25" would undercharge the payer.
func TestMTNGateway_Initiate_AmountRendering(t *testing.T) {
	var captured mtnRequestToPay
	mux := http.NewServeMux()
	mux.HandleFunc("/collection/token/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mtnTokenResponse{AccessToken: "token-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/collection/v1_0/requesttopay", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gateway := NewMTNGateway(mtnTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{
		ExternalID:  "ext-123",
		AmountCents: 2550,
		PhoneNumber: "256772000001",
		Reference:   "TKT-AAAA11112222",
	})

	assert.NoError(t, err)
	assert.Equal(t, "25.50", captured.Amount)
}

func TestMTNGateway_Initiate_Rejected(t *testing.T) {
	var tokenCalls int64
	server := mtnFakeServer(t, &tokenCalls, http.StatusInternalServerError, mtnStatusResponse{})
	defer server.Close()

	gateway := NewMTNGateway(mtnTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{ExternalID: "ext-123", PhoneNumber: "256772000001"})

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestMTNGateway_Initiate_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // stop before calling

	gateway := NewMTNGateway(mtnTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{ExternalID: "ext-123"})

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestMTNGateway_CheckStatus(t *testing.T) {
	testCases := []struct {
		name     string
		body     mtnStatusResponse
		expected Status
	}{
		{"Successful", mtnStatusResponse{Status: "SUCCESSFUL"}, Status{State: StateSuccess}},
		{"Failed with reason", mtnStatusResponse{Status: "FAILED", Reason: "PAYER_NOT_FOUND"}, Status{State: StateFailure, Reason: "PAYER_NOT_FOUND"}},
		{"Still pending", mtnStatusResponse{Status: "PENDING"}, Status{State: StatePending}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var tokenCalls int64
			server := mtnFakeServer(t, &tokenCalls, http.StatusAccepted, tc.body)
			defer server.Close()

			gateway := NewMTNGateway(mtnTestConfig(server.URL))

			status, err := gateway.CheckStatus(context.Background(), "ext-123")

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

// The bearer token is fetched once and reused until it nears expiry.
func TestMTNGateway_TokenReuse(t *testing.T) {
	var tokenCalls int64
	server := mtnFakeServer(t, &tokenCalls, http.StatusAccepted, mtnStatusResponse{Status: "PENDING"})
	defer server.Close()

	gateway := NewMTNGateway(mtnTestConfig(server.URL))
	ctx := context.Background()

	_, err := gateway.CheckStatus(ctx, "ext-123")
	assert.NoError(t, err)
	_, err = gateway.CheckStatus(ctx, "ext-123")
	assert.NoError(t, err)

	assert.Equal(t, int64(1), tokenCalls)
}
