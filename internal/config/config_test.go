package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("expected empty GEMINI_API_KEY when unset, got %q", cfg.GeminiAPIKey)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("SUMMARY_TTL_SECONDS", "soon")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("ASSISTANT_RATE_PER_MINUTE", "12")
	t.Setenv("PORT", "9090")

	cfg := Load()
	if cfg.SummaryTTLSeconds != 30 || cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallbacks, got ttl=%d token=%d", cfg.SummaryTTLSeconds, cfg.AccessTokenTTLMinutes)
	}
	if cfg.AssistantRatePerMinute != 12 {
		t.Fatalf("expected explicit rate, got %d", cfg.AssistantRatePerMinute)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}
