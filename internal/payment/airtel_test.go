package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urugendo/bustickets/config"
)

func airtelTestConfig(baseURL string) config.AirtelConfig {
	return config.AirtelConfig{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Country:      "UG",
		Currency:     "UGX",
	}
}

func airtelFakeServer(t *testing.T, pushStatus int, statusCode, message string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		var req airtelTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client-id", req.ClientID)
		assert.Equal(t, "client_credentials", req.GrantType)
		json.NewEncoder(w).Encode(airtelTokenResponse{AccessToken: "token-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/merchant/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "UG", r.Header.Get("X-Country"))

		var req airtelPushRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Transaction.ID)
		w.WriteHeader(pushStatus)
	})
	mux.HandleFunc("/standard/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		var body airtelStatusResponse
		body.Data.Transaction.ID = "ext-456"
		body.Data.Transaction.Status = statusCode
		body.Data.Transaction.Message = message
		json.NewEncoder(w).Encode(body)
	})
	return httptest.NewServer(mux)
}

func TestAirtelGateway_Initiate(t *testing.T) {
	server := airtelFakeServer(t, http.StatusOK, "", "")
	defer server.Close()

	gateway := NewAirtelGateway(airtelTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{
		ExternalID:  "ext-456",
		AmountCents: 2500000,
		PhoneNumber: "256752000002",
		Reference:   "TKT-BBBB33334444",
	})

	assert.NoError(t, err)
}

func TestAirtelGateway_Initiate_AmountRendering(t *testing.T) {
	var captured airtelPushRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(airtelTokenResponse{AccessToken: "token-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/merchant/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gateway := NewAirtelGateway(airtelTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{
		ExternalID:  "ext-456",
		AmountCents: 2550,
		PhoneNumber: "256752000002",
	})

	assert.NoError(t, err)
	assert.Equal(t, json.Number("25.50"), captured.Transaction.Amount)
}

func TestAirtelGateway_Initiate_Rejected(t *testing.T) {
	server := airtelFakeServer(t, http.StatusForbidden, "", "")
	defer server.Close()

	gateway := NewAirtelGateway(airtelTestConfig(server.URL))

	err := gateway.Initiate(context.Background(), Request{ExternalID: "ext-456"})

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestAirtelGateway_CheckStatus(t *testing.T) {
	testCases := []struct {
		name     string
		code     string
		message  string
		expected Status
	}{
		{"Transaction success", "TS", "", Status{State: StateSuccess}},
		{"Transaction failed", "TF", "insufficient funds", Status{State: StateFailure, Reason: "insufficient funds"}},
		{"In progress", "TIP", "", Status{State: StatePending}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := airtelFakeServer(t, http.StatusOK, tc.code, tc.message)
			defer server.Close()

			gateway := NewAirtelGateway(airtelTestConfig(server.URL))

			status, err := gateway.CheckStatus(context.Background(), "ext-456")

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestMapAirtelStatus(t *testing.T) {
	assert.Equal(t, Status{State: StateSuccess}, MapAirtelStatus("SUCCESS", ""))
	assert.Equal(t, Status{State: StateFailure, Reason: "declined"}, MapAirtelStatus("FAILED", "declined"))
	assert.Equal(t, Status{State: StatePending}, MapAirtelStatus("", ""))
}
