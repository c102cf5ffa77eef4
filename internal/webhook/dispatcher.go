package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 signature of the delivery body,
// computed with the webhook's secret over the exact serialized payload.
const SignatureHeader = "X-DroidGate-Signature"

// Logger is the minimal logging interface the dispatcher needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher delivers events to subscribed webhooks.
//
// Delivery is fire-and-forget: each delivery runs on its own goroutine with a
// bounded timeout, failures are logged and never surfaced to the triggering
// caller, and there is no retry or dead-letter queue. At-most-once is the
// only delivery guarantee.
type Dispatcher struct {
	store  *Store
	client *http.Client
	logger Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher delivering through the given store.
// deliveryTimeout bounds each outbound POST.
func NewDispatcher(store *Store, deliveryTimeout time.Duration, logger Logger) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: deliveryTimeout,
		},
		logger: logger,
	}
}

// Trigger fans the event out to every enabled webhook subscribed to its type.
//
// It returns as soon as the delivery goroutines are spawned; a slow or
// unreachable target never delays the caller.
func (d *Dispatcher) Trigger(eventType string, payload map[string]any) {
	hooks := d.store.Subscribers(eventType)
	if len(hooks) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to encode webhook event", "event", eventType, "error", err)
		return
	}

	for _, hook := range hooks {
		d.wg.Add(1)
		go d.deliver(hook, eventType, body)
	}
}

// deliver POSTs one event to one webhook. Runs detached from the triggering
// request; outcome is logged only.
func (d *Dispatcher) deliver(hook Webhook, eventType string, body []byte) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("webhook delivery failed to build request",
			"webhook_id", hook.ID,
			"event", eventType,
			"error", err,
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			"webhook_id", hook.ID,
			"event", eventType,
			"url", hook.URL,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()
	//nolint:errcheck // Drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		d.logger.Warn("webhook delivery rejected",
			"webhook_id", hook.ID,
			"event", eventType,
			"status", resp.StatusCode,
		)
		return
	}

	d.logger.Info("webhook delivered",
		"webhook_id", hook.ID,
		"event", eventType,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close waits up to grace for in-flight deliveries to finish, then abandons
// them. Abandoned deliveries are cut off by their own per-request timeouts.
func (d *Dispatcher) Close(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		d.logger.Warn("abandoning in-flight webhook deliveries after grace period",
			"grace", grace,
		)
	}
}

// Sign computes the hex HMAC-SHA256 signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header value against body.
// Exported for consumers implementing receivers; also used in tests.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
