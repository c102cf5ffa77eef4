// Package auth verifies bearer tokens against a locally stored shared secret.
//
// The token is an opaque random string persisted to an owner-only file. It is
// generated on first start when auto-generation is enabled. If no token file
// exists and auto-generation is off, the guard is disabled and every request
// is treated as authenticated. That mode exists for bootstrap and development
// only and is insecure for any reachable deployment.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// tokenBytes is the number of random bytes in a generated token.
	tokenBytes = 32

	// filePermissions restricts the token file to the owner.
	filePermissions = 0600

	// dirPermissions is the permission mode for the token directory.
	dirPermissions = 0750
)

// Logger is the minimal logging interface the guard needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Result is the outcome of an authentication check.
type Result struct {
	// Authenticated reports whether the request may proceed.
	Authenticated bool

	// TokenPresented reports whether a valid token was actually supplied,
	// as opposed to the guard running in disabled (open) mode. The rate
	// limiter uses this to pick the tier.
	TokenPresented bool
}

// Guard performs constant-time bearer-token verification.
//
// Thread Safety: the token is immutable after construction; all methods are
// safe for concurrent use.
type Guard struct {
	token   []byte
	enabled bool
}

// NewGuard loads the API token from path, generating one on first start when
// autoGenerate is set.
//
// An empty path, or a missing file with autoGenerate off, yields a disabled
// guard. The caller decides whether that is acceptable; the condition is
// logged loudly either way.
func NewGuard(path string, autoGenerate bool, logger Logger) (*Guard, error) {
	if path == "" {
		logger.Warn("no API token path configured; authentication is DISABLED")
		return &Guard{}, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		token := strings.TrimSpace(string(data))
		if token == "" {
			return nil, fmt.Errorf("token file %s is empty", path)
		}
		return &Guard{token: []byte(token), enabled: true}, nil

	case os.IsNotExist(err) && autoGenerate:
		token, genErr := generateToken(path)
		if genErr != nil {
			return nil, genErr
		}
		logger.Info("generated new API token", "path", path)
		return &Guard{token: []byte(token), enabled: true}, nil

	case os.IsNotExist(err):
		logger.Warn("API token file not found and auto-generation is off; authentication is DISABLED",
			"path", path,
		)
		return &Guard{}, nil

	default:
		return nil, fmt.Errorf("reading token file: %w", err)
	}
}

// Enabled reports whether the guard actually verifies tokens.
func (g *Guard) Enabled() bool {
	return g.enabled
}

// Check verifies the Authorization header value against the stored token.
//
// The comparison is constant-time to prevent timing side-channels. With the
// guard disabled, every request is authenticated but flagged as not having
// presented a token.
func (g *Guard) Check(authorization string) Result {
	if !g.enabled {
		return Result{Authenticated: true}
	}

	supplied, ok := bearerToken(authorization)
	if !ok {
		return Result{}
	}

	if subtle.ConstantTimeCompare([]byte(supplied), g.token) == 1 {
		return Result{Authenticated: true, TokenPresented: true}
	}
	return Result{}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(authorization[len(prefix):]), true
}

// generateToken creates a random token and persists it with owner-only permissions.
func generateToken(path string) (string, error) {
	b := make([]byte, tokenBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	token := hex.EncodeToString(b)

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), filePermissions); err != nil {
		return "", fmt.Errorf("writing token file: %w", err)
	}
	return token, nil
}
