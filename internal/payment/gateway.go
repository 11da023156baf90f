package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urugendo/bustickets/config"
	"go.uber.org/zap"
)

type State string

const (
	StateSuccess State = "SUCCESS"
	StatePending State = "PENDING"
	StateFailure State = "FAILURE"
)

// Status is the provider's authoritative view of a payment attempt.
type Status struct {
	State  State
	Reason string
}

// Request describes a collection push. ExternalID is generated by the caller
// and persisted before the provider call, so a webhook can always be
// correlated; both providers accept a client-supplied transaction id.
type Request struct {
	ExternalID  string
	AmountCents int64
	PhoneNumber string
	Reference   string
}

// ErrGatewayUnavailable means the provider could not be reached or rejected
// the request. Callers leave the booking PENDING with no external id so the
// payer can retry initiation.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway is the capability both mobile-money integrations expose.
// CheckStatus is free of provider-side effects and may be called any number
// of times.
type Gateway interface {
	Initiate(ctx context.Context, req Request) error
	CheckStatus(ctx context.Context, externalID string) (Status, error)
}

// NewFromConfig selects the configured mobile-money adapter. An unknown
// provider falls back to MTN with a warning.
func NewFromConfig(cfg config.PaymentsConfig, logger *zap.Logger) Gateway {
	switch cfg.Provider {
	case "airtel":
		return NewAirtelGateway(cfg.Airtel)
	case "mtn":
		return NewMTNGateway(cfg.MTN)
	default:
		logger.Warn("unknown payment provider, defaulting to mtn", zap.String("provider", cfg.Provider))
		return NewMTNGateway(cfg.MTN)
	}
}

// formatAmount renders cents as a decimal amount, 2550 -> "25.50". Integer
// division alone would truncate the sub-unit part and undercharge the payer.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// tokenCache scopes a bearer token to one adapter instance. Expiry keeps a
// slack so a token is never used in its final seconds.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

const tokenExpirySlack = 30 * time.Second

func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Add(tokenExpirySlack).Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *tokenCache) put(token string, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = now.Add(ttl)
}
