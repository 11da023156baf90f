package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/urugendo/bustickets/internal/domain"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"github.com/urugendo/bustickets/internal/service/payments"
	"go.uber.org/zap"
)

// MockReconcileUseCase is a mock implementation of payments.ReconcileUseCase
type MockReconcileUseCase struct {
	mock.Mock
}

func (m *MockReconcileUseCase) Poll(ctx context.Context, reference string) (*domain.Booking, string, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.String(1), args.Error(2)
}

func (m *MockReconcileUseCase) HandleWebhook(ctx context.Context, externalID string, status payment.Status) error {
	args := m.Called(ctx, externalID, status)
	return args.Error(0)
}

func TestPaymentHandler_status(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payments/TKT-AAAA11112222/status", nil)
	c.Params = gin.Params{{Key: "reference", Value: "TKT-AAAA11112222"}}

	booking := &domain.Booking{Reference: "TKT-AAAA11112222", Status: domain.BookingStatusPaid}
	mockService.On("Poll", c.Request.Context(), "TKT-AAAA11112222").Return(booking, "", nil)

	handler.status(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response paymentStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "TKT-AAAA11112222", response.Reference)
	assert.Equal(t, string(domain.BookingStatusPaid), response.Status)
	assert.Empty(t, response.Reason)

	mockService.AssertExpectations(t)
}

func TestPaymentHandler_status_withReason(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payments/TKT-AAAA11112222/status", nil)
	c.Params = gin.Params{{Key: "reference", Value: "TKT-AAAA11112222"}}

	booking := &domain.Booking{Reference: "TKT-AAAA11112222", Status: domain.BookingStatusPending}
	mockService.On("Poll", c.Request.Context(), "TKT-AAAA11112222").Return(booking, "payment not initiated", nil)

	handler.status(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payment not initiated")
}

func TestPaymentHandler_status_notFound(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payments/TKT-MISSING/status", nil)
	c.Params = gin.Params{{Key: "reference", Value: "TKT-MISSING"}}

	mockService.On("Poll", c.Request.Context(), "TKT-MISSING").Return(nil, "", repository.ErrNotFound)

	handler.status(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandler_webhook_mtn(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(mtnWebhook{ReferenceID: "ext-123", Status: "SUCCESSFUL"})
	c.Request = httptest.NewRequest("POST", "/payments/webhook/mtn", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "provider", Value: "mtn"}}

	mockService.On("HandleWebhook", c.Request.Context(), "ext-123",
		payment.Status{State: payment.StateSuccess}).Return(nil)

	handler.webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acknowledged")
	mockService.AssertExpectations(t)
}

func TestPaymentHandler_webhook_airtelFailure(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body airtelWebhook
	body.Transaction.ID = "ext-456"
	body.Transaction.StatusCode = "TF"
	body.Transaction.Message = "insufficient funds"
	raw, _ := json.Marshal(body)
	c.Request = httptest.NewRequest("POST", "/payments/webhook/airtel", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "provider", Value: "airtel"}}

	mockService.On("HandleWebhook", c.Request.Context(), "ext-456",
		payment.Status{State: payment.StateFailure, Reason: "insufficient funds"}).Return(nil)

	handler.webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

// An unknown external id is still acknowledged so the provider stops
// redelivering.
func TestPaymentHandler_webhook_unknownBookingStillAcknowledged(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(mtnWebhook{ReferenceID: "stale-id", Status: "SUCCESSFUL"})
	c.Request = httptest.NewRequest("POST", "/payments/webhook/mtn", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "provider", Value: "mtn"}}

	mockService.On("HandleWebhook", c.Request.Context(), "stale-id",
		payment.Status{State: payment.StateSuccess}).Return(payments.ErrUnknownBooking)

	handler.webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acknowledged")
}

func TestPaymentHandler_webhook_malformedPayload(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("POST", "/payments/webhook/mtn", bytes.NewReader([]byte("{not json")))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "provider", Value: "mtn"}}

	handler.webhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "HandleWebhook")
}

func TestPaymentHandler_webhook_unknownProvider(t *testing.T) {
	mockService := &MockReconcileUseCase{}
	handler := NewPaymentHandler(mockService, zap.NewNop())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(mtnWebhook{ReferenceID: "ext-123", Status: "SUCCESSFUL"})
	c.Request = httptest.NewRequest("POST", "/payments/webhook/chipper", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "provider", Value: "chipper"}}

	handler.webhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "HandleWebhook")
}
