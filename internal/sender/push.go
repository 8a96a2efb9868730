package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PushSender delivers notifications to the internal push gateway, which
// fans them out to the user's registered devices.
type PushSender struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
}

func NewPushSender(gatewayURL, apiKey string) *PushSender {
	return &PushSender{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     &http.Client{},
	}
}

// pushRequest is the payload for the push gateway.
type pushRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Send posts the content to the push gateway keyed by user id.
func (s *PushSender) Send(ctx context.Context, to string, content Content) error {
	reqBody := pushRequest{
		UserID: to,
		Title:  content.Subject,
		Body:   content.Body,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway error: %s", resp.Status)
	}

	return nil
}
