// Package clients implements the collaborator contracts over JSON/HTTP.
//
// Each collaborator is a small adapter around one jsonClient. Calls carry a
// per-client timeout, are traced through otelhttp, and are never retried: a
// failure is returned immediately and the dispatcher turns it into a tool
// error.
package clients

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxResponseBytes = 4 << 20
	userAgent        = "Concierge/1.0"
	signatureHeader  = "X-Concierge-Signature"
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Service string
	Status  int
	Body    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.Status, e.Body)
}

// ServiceError is returned when a 2xx response carries an {"error": ...}
// envelope.
type ServiceError struct {
	Service string
	Message string
}

func (e *ServiceError) Error() string { return e.Service + ": " + e.Message }

// NewHTTPClient returns an http.Client whose transport is traced.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

type jsonClient struct {
	service string
	base    string
	timeout time.Duration
	secret  string
	client  *http.Client
}

func newJSONClient(service, base string, timeout time.Duration, secret string, hc *http.Client) *jsonClient {
	if hc == nil {
		hc = NewHTTPClient()
	}
	return &jsonClient{
		service: service,
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		secret:  secret,
		client:  hc,
	}
}

func (c *jsonClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, c.base+path, body, out)
}

func (c *jsonClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *jsonClient) do(ctx context.Context, method, target string, body []byte, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.secret != "" {
			mac := hmac.New(sha256.New, []byte(c.secret))
			mac.Write(body)
			req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(mac.Sum(nil)))
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Service: c.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		var msg string
		if json.Unmarshal(envelope.Error, &msg) != nil {
			msg = string(envelope.Error)
		}
		if msg != "" {
			return &ServiceError{Service: c.service, Message: msg}
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}
