package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")

	content := `{
		"default": {"max_requests": 30, "window_seconds": 60},
		"authenticated": {"max_requests": 120, "window_seconds": 60}
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing policy file: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error: %v", err)
	}
	if p.Default.MaxRequests != 30 {
		t.Errorf("Default.MaxRequests = %d, want 30", p.Default.MaxRequests)
	}
	if p.Authenticated.MaxRequests != 120 {
		t.Errorf("Authenticated.MaxRequests = %d, want 120", p.Authenticated.MaxRequests)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("LoadPolicy() on missing file returned nil error")
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{
			name:   "valid",
			policy: DefaultPolicy(),
		},
		{
			name: "zero max requests is valid",
			policy: Policy{
				Default:       TierPolicy{MaxRequests: 0, WindowSeconds: 60},
				Authenticated: TierPolicy{MaxRequests: 10, WindowSeconds: 60},
			},
		},
		{
			name: "zero window rejected",
			policy: Policy{
				Default:       TierPolicy{MaxRequests: 10, WindowSeconds: 0},
				Authenticated: TierPolicy{MaxRequests: 10, WindowSeconds: 60},
			},
			wantErr: true,
		},
		{
			name: "negative window rejected",
			policy: Policy{
				Default:       TierPolicy{MaxRequests: 10, WindowSeconds: 60},
				Authenticated: TierPolicy{MaxRequests: 10, WindowSeconds: -5},
			},
			wantErr: true,
		},
		{
			name: "negative max requests rejected",
			policy: Policy{
				Default:       TierPolicy{MaxRequests: -1, WindowSeconds: 60},
				Authenticated: TierPolicy{MaxRequests: 10, WindowSeconds: 60},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
