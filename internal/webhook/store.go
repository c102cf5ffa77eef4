// Package webhook maintains the registry of outbound notification targets
// and delivers runtime events to them.
//
// The registry is persisted as a JSON array with owner-only permissions.
// Every mutation rewrites the file atomically (write-temp-then-rename) so a
// failed write leaves the previous on-disk state intact.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry persistence constants.
const (
	// filePermissions restricts the registry file to the owner.
	filePermissions = 0600

	// dirPermissions is the permission mode for the registry directory.
	dirPermissions = 0750
)

// Registration errors, mapped to INVALID_INPUT at the API boundary.
var (
	ErrInvalidURL = errors.New("webhook url must include a scheme and host")
	ErrNoEvents   = errors.New("webhook must subscribe to at least one event type")
)

// UnknownEventError reports an unrecognised event type in a registration.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Event)
}

// Webhook is a registered notification target.
//
// The ID is generated by the server, never supplied by the client. The
// secret, when set, signs delivery payloads and is redacted from listings.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribedTo reports whether the webhook subscribes to eventType.
func (w Webhook) SubscribedTo(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Store is the persisted webhook registry.
//
// Thread Safety: all methods are safe for concurrent use. The lock covers
// only list mutation and the snapshot copy, never network I/O.
type Store struct {
	path string

	mu    sync.Mutex
	hooks []Webhook

	// now is injectable for tests.
	now func() time.Time
}

// NewStore opens the registry at path, loading any previously persisted
// webhooks. A missing file yields an empty registry.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		now:  time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading webhook registry: %w", err)
	}

	if err := json.Unmarshal(data, &s.hooks); err != nil {
		return nil, fmt.Errorf("parsing webhook registry: %w", err)
	}
	return s, nil
}

// Register validates and adds a webhook, persists the registry, and returns
// the stored entry with its generated id.
func (s *Store) Register(rawURL string, events []string, secret string) (Webhook, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Webhook{}, ErrInvalidURL
	}

	deduped := dedup(events)
	if len(deduped) == 0 {
		return Webhook{}, ErrNoEvents
	}
	for _, e := range deduped {
		if !KnownEvent(e) {
			return Webhook{}, &UnknownEventError{Event: e}
		}
	}

	hook := Webhook{
		ID:        "wh-" + uuid.NewString(),
		URL:       rawURL,
		Events:    deduped,
		Secret:    secret,
		Enabled:   true,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, hook)
	if err := s.persistLocked(); err != nil {
		// Roll back the in-memory append so memory matches disk.
		s.hooks = s.hooks[:len(s.hooks)-1]
		return Webhook{}, err
	}
	return hook, nil
}

// Remove deletes the webhook with the given id and persists the registry.
// It reports whether anything was removed.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, hook := range s.hooks {
		if hook.ID != id {
			continue
		}
		removed := hook
		s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
		if err := s.persistLocked(); err != nil {
			// Restore prior state on persistence failure.
			s.hooks = append(s.hooks[:i], append([]Webhook{removed}, s.hooks[i:]...)...)
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// List returns copies of all registered webhooks with secrets redacted.
func (s *Store) List() []Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Webhook, len(s.hooks))
	for i, hook := range s.hooks {
		out[i] = hook
		out[i].Secret = ""
		out[i].Events = append([]string(nil), hook.Events...)
	}
	return out
}

// Subscribers returns copies of the enabled webhooks subscribed to eventType,
// secrets included. Used by the dispatcher; the lock is held only for the
// copy, never during delivery.
func (s *Store) Subscribers(eventType string) []Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Webhook
	for _, hook := range s.hooks {
		if hook.Enabled && hook.SubscribedTo(eventType) {
			copied := hook
			copied.Events = append([]string(nil), hook.Events...)
			out = append(out, copied)
		}
	}
	return out
}

// Count returns the number of registered webhooks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

// persistLocked writes the full registry atomically. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.hooks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding webhook registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("creating webhook registry directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing webhook registry: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing webhook registry: %w", err)
	}
	return nil
}

// dedup removes duplicates and empty strings, preserving order.
func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
