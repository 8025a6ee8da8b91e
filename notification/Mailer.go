package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const DefaultResendEndpoint = "https://api.resend.com"

type MailerConfig struct {
	ApiKey   string
	From     string
	Endpoint string
	Timeout  time.Duration
}

// Mailer sends rendered notifications through the Resend HTTP API.
type Mailer struct {
	cfg      MailerConfig
	renderer *Renderer
	client   *http.Client
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func NewMailer(cfg MailerConfig, renderer *Renderer) *Mailer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Mailer{cfg: cfg, renderer: renderer, client: &http.Client{Timeout: cfg.Timeout}}
}

func (m *Mailer) Send(ctx context.Context, to Recipient, kind Kind, payload Payload) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	rendered, err := m.renderer.Render(kind, to, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(resendEmail{
		From:    m.cfg.From,
		To:      []string{to.Email},
		Subject: rendered.Subject,
		Html:    rendered.HTML,
		Text:    rendered.Text,
	})
	if err != nil {
		return fmt.Errorf("unable to encode email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.cfg.Endpoint, "/")+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := resendError{}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("email provider rejected message (%d %s): %s", resp.StatusCode, apiErr.Name, apiErr.Message)
	}
	return fmt.Errorf("email provider returned status %d", resp.StatusCode)
}
