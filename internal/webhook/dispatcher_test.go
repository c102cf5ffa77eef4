package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// nopLogger satisfies Logger and records nothing.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type delivery struct {
	body      []byte
	signature string
}

func TestTriggerDelivers(t *testing.T) {
	received := make(chan delivery, 1)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- delivery{body: body, signature: r.Header.Get(SignatureHeader)}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	store := newTestStore(t)
	if _, err := store.Register(target.URL, []string{EventAppLaunched}, "s3cret"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	d := NewDispatcher(store, 5*time.Second, nopLogger{})
	d.Trigger(EventAppLaunched, map[string]any{"package": "com.example.app"})
	d.Close(5 * time.Second)

	select {
	case got := <-received:
		var event Event
		if err := json.Unmarshal(got.body, &event); err != nil {
			t.Fatalf("delivery body is not valid JSON: %v", err)
		}
		if event.Type != EventAppLaunched {
			t.Errorf("event = %q, want %q", event.Type, EventAppLaunched)
		}
		if event.Payload["package"] != "com.example.app" {
			t.Errorf("payload = %v", event.Payload)
		}
		if event.Timestamp.IsZero() {
			t.Error("event timestamp is zero")
		}
		if !VerifySignature("s3cret", got.body, got.signature) {
			t.Errorf("signature %q does not verify", got.signature)
		}
	default:
		t.Fatal("no delivery received")
	}
}

func TestTriggerSkipsNonSubscribers(t *testing.T) {
	hits := make(chan struct{}, 4)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	store := newTestStore(t)
	if _, err := store.Register(target.URL, []string{EventPropertySet}, ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	d := NewDispatcher(store, 5*time.Second, nopLogger{})
	d.Trigger(EventAppLaunched, map[string]any{"package": "com.example.app"})
	d.Close(5 * time.Second)

	select {
	case <-hits:
		t.Fatal("non-subscribed webhook was notified")
	default:
	}
}

func TestTriggerWithoutSecretOmitsSignature(t *testing.T) {
	received := make(chan string, 1)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	store := newTestStore(t)
	if _, err := store.Register(target.URL, []string{EventAppStopped}, ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	d := NewDispatcher(store, 5*time.Second, nopLogger{})
	d.Trigger(EventAppStopped, nil)
	d.Close(5 * time.Second)

	select {
	case sig := <-received:
		if sig != "" {
			t.Errorf("signature header = %q, want absent", sig)
		}
	default:
		t.Fatal("no delivery received")
	}
}

func TestTriggerSkipsDisabledWebhook(t *testing.T) {
	hits := make(chan struct{}, 4)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	path := filepath.Join(t.TempDir(), "webhooks.json")
	registry := fmt.Sprintf(
		`[{"id": "wh-off", "url": %q, "events": ["app_launched"], "enabled": false, "created_at": "2026-03-01T10:00:00Z"}]`,
		target.URL)
	if err := os.WriteFile(path, []byte(registry), 0600); err != nil {
		t.Fatalf("writing registry: %v", err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	d := NewDispatcher(store, 5*time.Second, nopLogger{})
	d.Trigger(EventAppLaunched, map[string]any{"package": "com.example.app"})
	d.Close(5 * time.Second)

	select {
	case <-hits:
		t.Fatal("disabled webhook was notified")
	default:
	}
}

func TestTriggerDoesNotBlockOnSlowTarget(t *testing.T) {
	release := make(chan struct{})
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	defer close(release)

	store := newTestStore(t)
	if _, err := store.Register(target.URL, []string{EventAppLaunched}, ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	d := NewDispatcher(store, 30*time.Second, nopLogger{})

	start := time.Now()
	d.Trigger(EventAppLaunched, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Trigger blocked for %v; delivery must be fire-and-forget", elapsed)
	}
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"event":"app_launched"}`)

	sig := Sign("s3cret", body)
	if sig[:7] != "sha256=" {
		t.Errorf("signature = %q, want sha256= prefix", sig)
	}
	if !VerifySignature("s3cret", body, sig) {
		t.Error("signature failed to verify with correct secret")
	}
	if VerifySignature("wrong", body, sig) {
		t.Error("signature verified with wrong secret")
	}
	if VerifySignature("s3cret", []byte("tampered"), sig) {
		t.Error("signature verified over tampered body")
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "webhooks.json"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s
}
