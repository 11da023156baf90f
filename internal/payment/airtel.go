package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urugendo/bustickets/config"
)

// AirtelGateway talks to the Airtel Money merchant API. Besides the status
// endpoint Airtel delivers out-of-band webhooks echoing the caller's
// transaction id.
type AirtelGateway struct {
	cfg    config.AirtelConfig
	client *http.Client
	tokens *tokenCache
}

func NewAirtelGateway(cfg config.AirtelConfig) *AirtelGateway {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AirtelGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		tokens: &tokenCache{},
	}
}

type airtelTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type airtelTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type airtelPushRequest struct {
	Reference   string            `json:"reference"`
	Subscriber  airtelSubscriber  `json:"subscriber"`
	Transaction airtelTransaction `json:"transaction"`
}

type airtelSubscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	MSISDN   string `json:"msisdn"`
}

type airtelTransaction struct {
	Amount   json.Number `json:"amount"`
	Country  string      `json:"country"`
	Currency string      `json:"currency"`
	ID       string      `json:"id"`
}

type airtelStatusResponse struct {
	Data struct {
		Transaction struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"transaction"`
	} `json:"data"`
}

func (g *AirtelGateway) Initiate(ctx context.Context, req Request) error {
	token, err := g.bearerToken(ctx)
	if err != nil {
		return err
	}

	body := airtelPushRequest{
		Reference: req.Reference,
		Subscriber: airtelSubscriber{
			Country:  g.cfg.Country,
			Currency: g.cfg.Currency,
			MSISDN:   req.PhoneNumber,
		},
		Transaction: airtelTransaction{
			Amount:   json.Number(formatAmount(req.AmountCents)),
			Country:  g.cfg.Country,
			Currency: g.cfg.Currency,
			ID:       req.ExternalID,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/merchant/v1/payments/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Country", g.cfg.Country)
	httpReq.Header.Set("X-Currency", g.cfg.Currency)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: payment push returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return nil
}

func (g *AirtelGateway) CheckStatus(ctx context.Context, externalID string) (Status, error) {
	token, err := g.bearerToken(ctx)
	if err != nil {
		return Status{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/standard/v1/payments/"+externalID, nil)
	if err != nil {
		return Status{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Country", g.cfg.Country)
	httpReq.Header.Set("X-Currency", g.cfg.Currency)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: status query returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var st airtelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return MapAirtelStatus(st.Data.Transaction.Status, st.Data.Transaction.Message), nil
}

// MapAirtelStatus translates Airtel transaction status codes; the webhook
// handler reuses it for callback payloads.
func MapAirtelStatus(code, message string) Status {
	switch code {
	case "TS", "SUCCESS":
		return Status{State: StateSuccess}
	case "TF", "FAILED":
		return Status{State: StateFailure, Reason: message}
	default:
		return Status{State: StatePending}
	}
}

func (g *AirtelGateway) bearerToken(ctx context.Context) (string, error) {
	now := time.Now()
	if token, ok := g.tokens.get(now); ok {
		return token, nil
	}

	payload, err := json.Marshal(airtelTokenRequest{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/auth/oauth2/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var tr airtelTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if configured := g.cfg.TokenTTL(); configured > 0 && (ttl == 0 || configured < ttl) {
		ttl = configured
	}
	g.tokens.put(tr.AccessToken, ttl, now)
	return tr.AccessToken, nil
}

var _ Gateway = (*AirtelGateway)(nil)
