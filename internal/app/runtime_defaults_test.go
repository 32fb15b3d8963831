package app

import (
	"strings"
	"testing"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if cfg.Auth.JWT.Secret == "" {
		t.Fatal("expected JWT secret to be generated")
	}
	if !generated["auth.jwt.secret"] {
		t.Fatalf("expected generated map to include jwt secret: %#v", generated)
	}
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(generated) != 0 {
		t.Fatalf("expected no keys generated, got %#v", generated)
	}
	if cfg.Auth.JWT.Secret != strings.Repeat("a", 10) {
		t.Fatal("expected existing secret to be kept")
	}
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	if _, err := ApplyRuntimeDefaults(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
