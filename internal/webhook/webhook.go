package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/puntazo/puntazo/internal/database"
)

const maxResponseBodyBytes = 1024

// Event names emitted by the gallery.
const (
	EventGateGranted = "gate.granted"
	EventGateDenied  = "gate.denied"
	EventDirectLink  = "clip.direct_link"
)

// Event represents a webhook event to dispatch.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Subject   string         `json:"subject"`
	Data      map[string]any `json:"data"`
}

// Client dispatches events to one configured endpoint with retries. When
// a database is attached every attempt is logged to webhook_deliveries.
type Client struct {
	db          database.DBTX
	url         string
	secret      string
	http        *http.Client
	retryDelays []time.Duration
	wg          sync.WaitGroup
}

// New creates a webhook client. db may be nil.
func New(db database.DBTX, url, secret string) *Client {
	return &Client{
		db:          db,
		url:         url,
		secret:      secret,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Emit dispatches in the background so request handling never waits on
// the receiver. Failures are logged.
func (c *Client) Emit(name, subject string, data map[string]any) {
	if !c.Enabled() {
		return
	}
	event := Event{Name: name, Timestamp: time.Now().UTC(), Subject: subject, Data: data}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := c.Dispatch(ctx, event); err != nil {
			slog.Warn("webhook: dispatch failed", "event", name, "subject", subject, "error", err)
		}
	}()
}

// Wait blocks until background dispatches have finished.
func (c *Client) Wait() {
	if c != nil {
		c.wg.Wait()
	}
}

// Dispatch sends an event with up to 1+len(retryDelays) attempts.
func (c *Client) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := SignPayload(c.secret, body)
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, body, signature)
		c.logDelivery(ctx, event, body, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}

		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, body []byte, signature string) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, event Event, payload []byte, statusCode *int, responseBody string, attempt int) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (subject, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Subject, event.Name, payload, statusCode, responseBody, attempt,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "subject", event.Subject, "error", err)
	}
}

// Delivery is one logged attempt.
type Delivery struct {
	Event      string
	StatusCode *int
	Attempt    int
	CreatedAt  time.Time
}

// RecentDeliveries returns the latest attempts logged for a subject.
func (c *Client) RecentDeliveries(ctx context.Context, subject string, limit int) ([]Delivery, error) {
	if c.db == nil {
		return nil, nil
	}
	rows, err := c.db.Query(ctx,
		`SELECT event, status_code, attempt, created_at
		 FROM webhook_deliveries
		 WHERE subject = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		subject, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.Event, &d.StatusCode, &d.Attempt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
