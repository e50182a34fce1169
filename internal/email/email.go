// Package email sends transactional marketplace email.
//
// Templates are embedded HTML rendered with html/template. Delivery goes
// through a Resend-compatible HTTP API wrapped in retry and a circuit breaker,
// or through a log-only sender when no API key is configured.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/pkg/resilience"
)

// Message is a rendered email ready for delivery
type Message struct {
	To      []string
	Subject string
	HTML    string
	Tags    map[string]string
}

// Sender delivers a message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// APIError is a non-2xx response from the email API
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("email api: %d %s: %s", e.StatusCode, e.Name, e.Message)
}

// HTTPConfig configures HTTPSender
type HTTPConfig struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	Client    *http.Client
}

// HTTPSender posts messages to a Resend-compatible /emails endpoint
type HTTPSender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

// NewHTTPSender builds an HTTPSender
func NewHTTPSender(cfg HTTPConfig) (*HTTPSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("email api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("email from address is required")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.resend.com"
	}
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = resilience.NewClient(timeout, resilience.DefaultRetryConfig(), resilience.DefaultBreakerConfig())
	}
	return &HTTPSender{
		endpoint: strings.TrimRight(apiURL, "/") + "/emails",
		apiKey:   cfg.APIKey,
		from:     from,
		client:   client,
	}, nil
}

type sendRequest struct {
	From    string    `json:"from"`
	To      []string  `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
	Tags    []sendTag `json:"tags,omitempty"`
}

type sendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Send implements Sender
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	payload := sendRequest{From: s.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML}
	for k, v := range msg.Tags {
		payload.Tags = append(payload.Tags, sendTag{Name: k, Value: v})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			apiErr.Name = parsed.Name
			apiErr.Message = parsed.Message
		} else {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}
	return nil
}

// LogSender logs messages instead of delivering them
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender
func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not delivered, no provider configured",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"bytes", len(msg.HTML))
	return nil
}

// Mailer renders a template and hands it to a Sender
type Mailer struct {
	sender   Sender
	renderer *Renderer
	logger   *slog.Logger
}

// NewMailer creates a mailer over sender
func NewMailer(sender Sender, logger *slog.Logger) (*Mailer, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{sender: sender, renderer: renderer, logger: logger}, nil
}

// Send renders name with data and delivers it to the recipient
func (m *Mailer) Send(ctx context.Context, to string, name Template, data Data) error {
	subject, body, err := m.renderer.Render(name, data)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, Message{
		To:      []string{to},
		Subject: subject,
		HTML:    body,
		Tags:    map[string]string{"template": string(name)},
	}); err != nil {
		return fmt.Errorf("failed to send %s email: %w", name, err)
	}
	m.logger.DebugContext(ctx, "email sent", "template", string(name))
	return nil
}
