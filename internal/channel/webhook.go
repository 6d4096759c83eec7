package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type WebhookConfig struct {
	URL         string
	MaxAttempts int
	Backoff     time.Duration
}

// PushPayload is the body posted to the push relay.
type PushPayload struct {
	To           string                     `json:"to"`
	Notification PushMessage                `json:"notification"`
	Data         models.ChannelNotification `json:"data"`
}

type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebhookPushSink posts push notifications to an HTTP relay (FCM-style).
type WebhookPushSink struct {
	cfg  WebhookConfig
	http *http.Client
}

func NewWebhookPushSink(cfg WebhookConfig, client *http.Client) *WebhookPushSink {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 2
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &WebhookPushSink{cfg: cfg, http: client}
}

func NewPushPayload(n models.ChannelNotification) PushPayload {
	return PushPayload{
		To: n.DeviceToken,
		Notification: PushMessage{
			Title: "Accident alert",
			Body:  n.Message,
		},
		Data: n,
	}
}

func (s *WebhookPushSink) Send(ctx context.Context, n models.ChannelNotification) error {
	body, err := json.Marshal(NewPushPayload(n))
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if lastErr = s.post(ctx, body); lastErr == nil {
			return nil
		}

		slog.Warn("push webhook failed",
			"id", n.ReportID,
			"attempt", attempt,
			"url", s.cfg.URL,
			"error", lastErr,
		)

		var perm *permanentError
		if errors.As(lastErr, &perm) || attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.cfg.Backoff):
		}
	}
	return lastErr
}

func (s *WebhookPushSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return &permanentError{err: fmt.Errorf("push relay rejected notification: %s", resp.Status)}
	default:
		return fmt.Errorf("push relay returned %s", resp.Status)
	}
}

// permanentError is not worth another attempt.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
