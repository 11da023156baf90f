package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urugendo/bustickets/config"
	"github.com/urugendo/bustickets/internal/kafka"
)

func TestCompose(t *testing.T) {
	confirmed := kafka.TicketEvent{
		Type:      kafka.EventPaymentConfirmed,
		Reference: "TKT-AAAA11112222",
		TripID:    4,
		Seats:     []int{12, 13},
	}
	message := Compose(confirmed)
	assert.Contains(t, message, "TKT-AAAA11112222")
	assert.Contains(t, message, "12, 13")
	assert.Contains(t, message, "confirmed")

	expired := kafka.TicketEvent{Type: kafka.EventBookingExpired, Reference: "TKT-AAAA11112222"}
	assert.Contains(t, Compose(expired), "expired")

	failed := kafka.TicketEvent{Type: kafka.EventBookingFailed, Reference: "TKT-AAAA11112222"}
	assert.Contains(t, Compose(failed), "did not complete")
}

func TestSMSSender_Send(t *testing.T) {
	var received smsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sms-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSMSSender(config.NotifyConfig{
		SMSURL:    server.URL,
		SMSAPIKey: "sms-key",
		SMSSender: "BUSTICKETS",
	})

	err := sender.Send(context.Background(), "256772000001", "Payment received.")

	assert.NoError(t, err)
	assert.Equal(t, "256772000001", received.To)
	assert.Equal(t, "BUSTICKETS", received.From)
	assert.Equal(t, "Payment received.", received.Message)
}

func TestSMSSender_Send_VendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSMSSender(config.NotifyConfig{SMSURL: server.URL})

	err := sender.Send(context.Background(), "256772000001", "hello")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
