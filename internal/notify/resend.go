package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

// ResendMailer delivers through the Resend transactional email API.
type ResendMailer struct {
	apiKey     string
	sender     string
	endpoint   string
	httpClient *http.Client
}

type ResendOption func(*ResendMailer)

// WithResendEndpoint overrides the API endpoint, mainly for tests.
func WithResendEndpoint(url string) ResendOption {
	return func(m *ResendMailer) { m.endpoint = url }
}

func NewResendMailer(apiKey, sender string, opts ...ResendOption) *ResendMailer {
	m := &ResendMailer{
		apiKey:     apiKey,
		sender:     sender,
		endpoint:   defaultResendEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	body, err := json.Marshal(resendPayload{
		From:    m.sender,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode resend payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resend send to %s failed: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend send to %s failed: status %d: %s", to, resp.StatusCode, detail)
	}
	return nil
}
