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

// MTNGateway talks to the MTN MoMo collection API. The caller's external id
// travels as the X-Reference-Id of the requesttopay call and identifies the
// payment on the status endpoint and in callbacks.
type MTNGateway struct {
	cfg    config.MTNConfig
	client *http.Client
	tokens *tokenCache
}

func NewMTNGateway(cfg config.MTNConfig) *MTNGateway {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &MTNGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		tokens: &tokenCache{},
	}
}

type mtnTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnPayer `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

type mtnPayer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnStatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (g *MTNGateway) Initiate(ctx context.Context, req Request) error {
	token, err := g.bearerToken(ctx)
	if err != nil {
		return err
	}

	body := mtnRequestToPay{
		Amount:       formatAmount(req.AmountCents),
		Currency:     g.cfg.Currency,
		ExternalID:   req.Reference,
		Payer:        mtnPayer{PartyIDType: "MSISDN", PartyID: req.PhoneNumber},
		PayerMessage: "Bus ticket " + req.Reference,
		PayeeNote:    req.Reference,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Reference-Id", req.ExternalID)
	httpReq.Header.Set("X-Target-Environment", g.cfg.TargetEnv)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: requesttopay returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return nil
}

func (g *MTNGateway) CheckStatus(ctx context.Context, externalID string) (Status, error) {
	token, err := g.bearerToken(ctx)
	if err != nil {
		return Status{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/collection/v1_0/requesttopay/"+externalID, nil)
	if err != nil {
		return Status{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Target-Environment", g.cfg.TargetEnv)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: status query returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var st mtnStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return mapMTNStatus(st), nil
}

func mapMTNStatus(st mtnStatusResponse) Status {
	switch st.Status {
	case "SUCCESSFUL":
		return Status{State: StateSuccess}
	case "FAILED":
		return Status{State: StateFailure, Reason: st.Reason}
	default:
		return Status{State: StatePending}
	}
}

func (g *MTNGateway) bearerToken(ctx context.Context) (string, error) {
	now := time.Now()
	if token, ok := g.tokens.get(now); ok {
		return token, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.cfg.APIUser, g.cfg.APIKey)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var tr mtnTokenResponse
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

var _ Gateway = (*MTNGateway)(nil)
