package webhook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "webhooks.json"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s
}

func TestRegister(t *testing.T) {
	s := testStore(t)

	hook, err := s.Register("https://example.com/hook", []string{EventAppLaunched}, "s3cret")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if !strings.HasPrefix(hook.ID, "wh-") {
		t.Errorf("id = %q, want wh- prefix", hook.ID)
	}
	if !hook.Enabled {
		t.Error("new webhook not enabled")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}

	// IDs must be unique across registrations.
	second, err := s.Register("https://example.com/hook2", []string{EventAppStopped}, "")
	if err != nil {
		t.Fatalf("Register() second error: %v", err)
	}
	if second.ID == hook.ID {
		t.Error("two registrations produced the same id")
	}
}

func TestRegisterValidation(t *testing.T) {
	s := testStore(t)

	tests := []struct {
		name    string
		url     string
		events  []string
		wantErr error
	}{
		{"missing scheme", "example.com/hook", []string{EventAppLaunched}, ErrInvalidURL},
		{"empty url", "", []string{EventAppLaunched}, ErrInvalidURL},
		{"no events", "https://example.com", nil, ErrNoEvents},
		{"only empty events", "https://example.com", []string{""}, ErrNoEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(tt.url, tt.events, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unknown event", func(t *testing.T) {
		_, err := s.Register("https://example.com", []string{"device_exploded"}, "")
		var unknownErr *UnknownEventError
		if !errors.As(err, &unknownErr) {
			t.Fatalf("Register() error = %v, want UnknownEventError", err)
		}
		if unknownErr.Event != "device_exploded" {
			t.Errorf("UnknownEventError.Event = %q", unknownErr.Event)
		}
	})

	if s.Count() != 0 {
		t.Errorf("Count() = %d after failed registrations, want 0", s.Count())
	}
}

func TestRegisterDeduplicatesEvents(t *testing.T) {
	s := testStore(t)

	hook, err := s.Register("https://example.com",
		[]string{EventAppLaunched, EventAppLaunched, EventAppStopped}, "")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if len(hook.Events) != 2 {
		t.Errorf("events = %v, want deduplicated pair", hook.Events)
	}
}

func TestRemove(t *testing.T) {
	s := testStore(t)

	hook, err := s.Register("https://example.com", []string{EventAppLaunched}, "")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	removed, err := s.Remove(hook.ID)
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if !removed {
		t.Fatal("Remove() = false for existing id")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d after removal, want 0", s.Count())
	}

	removed, err = s.Remove(hook.ID)
	if err != nil {
		t.Fatalf("Remove() second error: %v", err)
	}
	if removed {
		t.Error("Remove() = true for already removed id")
	}
}

func TestListRedactsSecrets(t *testing.T) {
	s := testStore(t)

	if _, err := s.Register("https://example.com", []string{EventAppLaunched}, "s3cret"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	hooks := s.List()
	if len(hooks) != 1 {
		t.Fatalf("List() returned %d hooks, want 1", len(hooks))
	}
	if hooks[0].Secret != "" {
		t.Errorf("List() secret = %q, want redacted", hooks[0].Secret)
	}

	// Subscribers keep the secret for signing.
	subs := s.Subscribers(EventAppLaunched)
	if len(subs) != 1 || subs[0].Secret != "s3cret" {
		t.Errorf("Subscribers() = %+v, want secret intact", subs)
	}
}

func TestSubscribersFiltersByEvent(t *testing.T) {
	s := testStore(t)

	if _, err := s.Register("https://a.example.com", []string{EventAppLaunched}, ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, err := s.Register("https://b.example.com", []string{EventPropertySet}, ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	subs := s.Subscribers(EventAppLaunched)
	if len(subs) != 1 || subs[0].URL != "https://a.example.com" {
		t.Errorf("Subscribers(app_launched) = %+v, want only a.example.com", subs)
	}
	if subs := s.Subscribers(EventContainerRestarted); len(subs) != 0 {
		t.Errorf("Subscribers(container_restarted) = %+v, want none", subs)
	}
}

func TestSubscribersSkipDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.json")
	registry := `[
  {"id": "wh-off", "url": "https://a.example.com", "events": ["app_launched"], "enabled": false, "created_at": "2026-03-01T10:00:00Z"},
  {"id": "wh-on", "url": "https://b.example.com", "events": ["app_launched"], "enabled": true, "created_at": "2026-03-01T10:00:00Z"}
]`
	if err := os.WriteFile(path, []byte(registry), 0600); err != nil {
		t.Fatalf("writing registry: %v", err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	subs := s.Subscribers(EventAppLaunched)
	if len(subs) != 1 || subs[0].ID != "wh-on" {
		t.Errorf("Subscribers() = %+v, want only the enabled webhook", subs)
	}

	// Disabled webhooks stay registered and visible in listings.
	if hooks := s.List(); len(hooks) != 2 {
		t.Errorf("List() returned %d hooks, want 2", len(hooks))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	hook, err := s1.Register("https://example.com", []string{EventAppLaunched}, "s3cret")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("registry file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("registry file permissions = %o, want 0600", perm)
	}

	// A fresh store over the same file sees the registration, secret included.
	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() reload error: %v", err)
	}
	subs := s2.Subscribers(EventAppLaunched)
	if len(subs) != 1 || subs[0].ID != hook.ID || subs[0].Secret != "s3cret" {
		t.Errorf("reloaded subscribers = %+v, want original webhook", subs)
	}
}

func TestNewStoreMissingFile(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewStore() on missing file error: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestNewStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}
	if _, err := NewStore(path); err == nil {
		t.Fatal("NewStore() on corrupt file returned nil error")
	}
}
