package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urugendo/bustickets/config"
)

// SMSSender posts messages to the SMS vendor's REST API.
type SMSSender struct {
	client *http.Client
	cfg    config.NotifyConfig
}

func NewSMSSender(cfg config.NotifyConfig) *SMSSender {
	return &SMSSender{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func (s *SMSSender) Send(ctx context.Context, destination, message string) error {
	payload, err := json.Marshal(smsRequest{To: destination, From: s.cfg.SMSSender, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SMSURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SMSAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms vendor unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms vendor returned %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*SMSSender)(nil)
