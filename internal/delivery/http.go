// Package delivery holds the SendFuncs used to push queued scans upstream.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"scanq/internal/domain"
	"strconv"
	"time"
)

// IdempotencyHeader lets the receiver drop a scan it has already applied.
const IdempotencyHeader = "Idempotency-Key"

// HTTPSender posts each payload as the JSON body of a request to URL.
type HTTPSender struct {
	Client *http.Client
	URL    string
	Token  string
}

func NewHTTPSender(url, token string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		Client: &http.Client{Timeout: timeout},
		URL:    url,
		Token:  token,
	}
}

// Send delivers payload. Non-2xx responses come back as *domain.StatusError;
// transport failures carry no status and are retried by the flusher.
func (s *HTTPSender) Send(ctx context.Context, payload json.RawMessage) error {
	if s.URL == "" {
		return errors.New("delivery url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	if id, ok := domain.RecordIDFromContext(ctx); ok {
		req.Header.Set(IdempotencyHeader, IdempotencyKey(id))
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post scan: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return domain.NewStatusError(resp.StatusCode, errors.New(msg))
}

// ValidateURL rejects sink URLs no request could be built from.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid delivery url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid delivery url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid delivery url %q: missing host", raw)
	}
	return nil
}

func IdempotencyKey(id int64) string {
	return "scan-" + strconv.FormatInt(id, 10)
}
