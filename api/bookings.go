package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urugendo/bustickets/internal/domain"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"github.com/urugendo/bustickets/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	TripID      int64                    `json:"trip_id"`
	Passengers  []booking.PassengerInput `json:"passengers"`
	PhoneNumber string                   `json:"phone_number"`
	Email       string                   `json:"email,omitempty"`
	Provider    string                   `json:"provider"`
	UserID      *int64                   `json:"user_id,omitempty"`
}

type bookingResponse struct {
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	TripID           int64  `json:"trip_id"`
	Seats            []int  `json:"seats"`
	PhoneNumber      string `json:"phone_number"`
	TotalPriceCents  int64  `json:"total_price_cents"`
	PaymentInitiated bool   `json:"payment_initiated"`
	ExpiresAt        string `json:"expires_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.POST("/:reference/pay", h.pay)
	router.POST("/:reference/scan", h.scan)
	router.DELETE("/:reference", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		TripID:      req.TripID,
		Passengers:  req.Passengers,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Provider:    req.Provider,
		UserID:      req.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSeatHeld), errors.Is(err, repository.ErrSeatTaken), errors.Is(err, repository.ErrNoSeats):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

// pay retries the mobile-money push for a booking whose initiation failed.
func (h *BookingHandler) pay(c *gin.Context) {
	updated, err := h.service.InitiatePayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, booking.ErrNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, payment.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, try again"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) scan(c *gin.Context) {
	updated, err := h.service.RedeemTicket(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	updated, err := h.service.CancelBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Reference:        b.Reference,
		Status:           string(b.Status),
		TripID:           b.TripID,
		Seats:            b.SeatNumbers(),
		PhoneNumber:      b.PhoneNumber,
		TotalPriceCents:  b.TotalPriceCents,
		PaymentInitiated: b.PaymentID != nil,
		ExpiresAt:        b.ExpiresAt.Format(time.RFC3339),
	}
}
