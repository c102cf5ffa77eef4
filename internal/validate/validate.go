// Package validate checks client-supplied identifiers before they reach the
// runtime command adapter. Every argument handed to the external tools must
// pass through one of these validators first.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Length limits for validated inputs.
const (
	maxPackageNameLength = 256
	maxIntentLength      = 512
	maxPropertyKeyLength = 128
)

// packagePattern matches reverse-domain application identifiers:
// letter/digit/underscore segments separated by dots, at least two segments.
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)+$`)

// propertyKeyPattern restricts property keys to alphanumerics plus dot,
// dash, and underscore.
var propertyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// intentDenylist are shell metacharacters rejected in intent strings, since
// the value is eventually passed to an external command.
const intentDenylist = ";|&$`\n<>"

// PackageName validates an Android application identifier.
func PackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name is required")
	}
	if len(name) > maxPackageNameLength {
		return fmt.Errorf("package name exceeds %d characters", maxPackageNameLength)
	}
	if !packagePattern.MatchString(name) {
		return fmt.Errorf("package name must be a dot-separated identifier (e.g. com.example.app)")
	}
	return nil
}

// IntentAction validates an intent/action string.
func IntentAction(intent string) error {
	if intent == "" {
		return fmt.Errorf("intent is required")
	}
	if len(intent) > maxIntentLength {
		return fmt.Errorf("intent exceeds %d characters", maxIntentLength)
	}
	if idx := strings.IndexAny(intent, intentDenylist); idx >= 0 {
		return fmt.Errorf("intent contains forbidden character %q", intent[idx])
	}
	return nil
}

// PropertyKey validates a system property key.
func PropertyKey(key string) error {
	if key == "" {
		return fmt.Errorf("property key is required")
	}
	if len(key) > maxPropertyKeyLength {
		return fmt.Errorf("property key exceeds %d characters", maxPropertyKeyLength)
	}
	if !propertyKeyPattern.MatchString(key) {
		return fmt.Errorf("property key may only contain letters, digits, dots, dashes, and underscores")
	}
	return nil
}
