package config

import (
	"fmt"
	"testing"

	"sunsetcast/internal/types"
)

// TestSecretStringAlias verifies that config.SecretString is the same type
// as types.SecretString and retains its redaction behavior.
func TestSecretStringAlias(t *testing.T) {
	secret := SecretString("postgres://app:pw@localhost/sunsetcast")

	if got := secret.String(); got != "***REDACTED***" {
		t.Errorf("SecretString.String() = %q, want %q", got, "***REDACTED***")
	}
	if got := fmt.Sprintf("%v", secret); got != "***REDACTED***" {
		t.Errorf("fmt.Sprintf(%%v) = %q, want %q", got, "***REDACTED***")
	}
	if got := secret.Unmask(); got != "postgres://app:pw@localhost/sunsetcast" {
		t.Errorf("SecretString.Unmask() = %q", got)
	}

	// Type identity with types.SecretString.
	var typesSecret types.SecretString = "x"
	var configSecret SecretString = typesSecret
	if configSecret != typesSecret {
		t.Error("config.SecretString and types.SecretString should be the same type")
	}
}

// TestConfigErrorFormat verifies the diagnostic error string with and without
// a wrapped error.
func TestConfigErrorFormat(t *testing.T) {
	err := &ConfigError{Type: ErrValidation, Message: "bad config"}
	if got := err.Error(); got != "[VALIDATION_FAILED] bad config" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := &ConfigError{Type: ErrParsing, Message: "bad value", Err: fmt.Errorf("strconv")}
	if got := wrapped.Error(); got != "[PARSING_FAILED] bad value: strconv" {
		t.Errorf("Error() = %q", got)
	}
	if wrapped.Unwrap() == nil {
		t.Error("Unwrap() = nil, want wrapped error")
	}
}
