package config

import "testing"

func TestIsModelSupported(t *testing.T) {
	if !IsModelSupported(ModelClaudeSonnet4) {
		t.Errorf("expected %s to be supported", ModelClaudeSonnet4)
	}
	if IsModelSupported("not-a-real-model") {
		t.Error("expected unknown model to be unsupported")
	}
}

func TestGetModelProvider(t *testing.T) {
	provider, err := GetModelProvider(ModelOpenAIO3Mini)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider != ProviderOpenAIOfficial {
		t.Errorf("got provider %q, want %q", provider, ProviderOpenAIOfficial)
	}

	if _, err := GetModelProvider("unknown-model"); err == nil {
		t.Error("expected error for unknown model")
	}
}
