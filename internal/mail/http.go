package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// HTTPSender posts messages to a transactional email API as JSON with a bearer API key.
type HTTPSender struct {
	composer   *Composer
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type httpMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// NewHTTPSender returns a sender that posts to baseURL.
func NewHTTPSender(composer *Composer, baseURL, apiKey string) (*HTTPSender, error) {
	if composer == nil {
		return nil, fmt.Errorf("mail: composer is required")
	}
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("mail: API URL and key are required")
	}
	return &HTTPSender{
		composer:   composer,
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// SendChallenge renders and posts the message. Error bodies are truncated and never echo the request.
func (c *HTTPSender) SendChallenge(ctx context.Context, email, link string) error {
	msg, err := c.composer.Compose(email, link)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(httpMessage{From: msg.From, To: msg.To, Subject: msg.Subject, Text: msg.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: api request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: api request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
