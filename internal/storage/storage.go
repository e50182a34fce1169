// Package storage uploads member avatars to a Supabase-compatible object
// storage bucket over its REST API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/pkg/resilience"
)

// ErrNotConfigured is returned when no storage endpoint is set
var ErrNotConfigured = errors.New("storage is not configured")

// Store is the object storage used by the profile service
type Store interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Error is a non-2xx storage response
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("storage: %d: %s", e.StatusCode, e.Message)
}

// Config configures a BucketClient
type Config struct {
	BaseURL string // e.g. https://project.supabase.co/storage/v1
	APIKey  string
	Bucket  string
	Timeout time.Duration
	Client  *http.Client
}

// BucketClient talks to a single bucket
type BucketClient struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
}

// NewBucketClient builds a client for one bucket
func NewBucketClient(cfg Config) (*BucketClient, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 20 * time.Second
		}
		client = resilience.NewClient(timeout, resilience.DefaultRetryConfig(), resilience.DefaultBreakerConfig())
	}
	return &BucketClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		client:  client,
	}, nil
}

// Upload writes data at key, replacing any existing object, and returns its public URL
func (c *BucketClient) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Type":  contentType,
		"Cache-Control": "3600",
		"x-upsert":      "true",
	}
	if _, err := c.do(ctx, http.MethodPost, c.objectURL(key), data, headers); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return c.PublicURL(key), nil
}

// Delete removes the object at key. Missing objects are not an error.
func (c *BucketClient) Delete(ctx context.Context, key string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": {key}})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/object/%s", c.baseURL, c.bucket), body,
		map[string]string{"Content-Type": "application/json"})
	var se *Error
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the public URL of key
func (c *BucketClient) PublicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, escapeKey(key))
}

func (c *BucketClient) objectURL(key string) string {
	return fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, escapeKey(key))
}

func (c *BucketClient) do(ctx context.Context, method, target string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(respBody, resp.StatusCode)
	}
	return respBody, nil
}

func parseError(body []byte, statusCode int) error {
	var errResp struct {
		StatusCode string `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &Error{StatusCode: statusCode, Message: string(body)}
	}
	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}
	return &Error{StatusCode: statusCode, Code: errResp.Error, Message: msg}
}

// escapeKey escapes each path segment and keeps the separators
func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Disabled rejects every call with ErrNotConfigured
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, []byte) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error { return ErrNotConfigured }

func (Disabled) PublicURL(string) string { return "" }
