package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.Provider != "openai" {
		t.Errorf("default provider: got %q, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.TimeoutSeconds != 8 {
		t.Errorf("default timeout: got %d, want 8", cfg.LLM.TimeoutSeconds)
	}
	if cfg.LLM.MaxInputChars != 2000 {
		t.Errorf("default max input chars: got %d, want 2000", cfg.LLM.MaxInputChars)
	}
	if cfg.Moderation.ConfidenceThreshold != 0.7 {
		t.Errorf("default threshold: got %v, want 0.7", cfg.Moderation.ConfidenceThreshold)
	}
	if !cfg.Moderation.BanOnDelete {
		t.Error("ban_on_delete should default to true")
	}
	if cfg.Moderation.NotifyTTLSeconds != 10 {
		t.Errorf("default notify ttl: got %d, want 10", cfg.Moderation.NotifyTTLSeconds)
	}
	if cfg.Reports.Cron != "0 9 * * *" {
		t.Errorf("default report cron: got %q", cfg.Reports.Cron)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope", "config.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Moderation.ConfidenceThreshold != 0.7 {
		t.Errorf("expected defaults, got threshold %v", cfg.Moderation.ConfidenceThreshold)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"telegram": {"token": "123:abc"},
		"llm": {"provider": "anthropic", "api_key": "sk-test", "model": "claude-haiku"},
		"moderation": {"confidence_threshold": 0.85, "ban_on_delete": false, "admin_ids": [111, "222"]}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider: got %q", cfg.LLM.Provider)
	}
	if cfg.Moderation.ConfidenceThreshold != 0.85 {
		t.Errorf("threshold: got %v", cfg.Moderation.ConfidenceThreshold)
	}
	if cfg.Moderation.BanOnDelete {
		t.Error("ban_on_delete false in file should override the true default")
	}
	// Untouched defaults survive
	if cfg.LLM.TimeoutSeconds != 8 {
		t.Errorf("timeout should keep default, got %d", cfg.LLM.TimeoutSeconds)
	}
	if len(cfg.Moderation.AdminIDs) != 2 || cfg.Moderation.AdminIDs[0] != 111 || cfg.Moderation.AdminIDs[1] != 222 {
		t.Errorf("admin_ids mixed types: got %v", cfg.Moderation.AdminIDs)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GROUPWARDEN_TELEGRAM_TOKEN", "env-token")
	t.Setenv("GROUPWARDEN_MODERATION_ADMIN_IDS", "10, 20,30")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	want := []int64{10, 20, 30}
	if len(cfg.Moderation.AdminIDs) != len(want) {
		t.Fatalf("admin_ids: got %v", cfg.Moderation.AdminIDs)
	}
	for i, id := range want {
		if cfg.Moderation.AdminIDs[i] != id {
			t.Errorf("admin_ids[%d]: got %d, want %d", i, cfg.Moderation.AdminIDs[i], id)
		}
	}
}

func TestFlexibleInt64Slice_RejectsGarbage(t *testing.T) {
	var f FlexibleInt64Slice
	if err := f.UnmarshalJSON([]byte(`["abc"]`)); err == nil {
		t.Error("non-numeric string should be rejected")
	}
	if err := f.UnmarshalText([]byte("1,x,3")); err == nil {
		t.Error("non-numeric text element should be rejected")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Moderation.AdminIDs = FlexibleInt64Slice{42}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Telegram.Token != "123:abc" {
		t.Errorf("token: got %q", loaded.Telegram.Token)
	}
	if len(loaded.Moderation.AdminIDs) != 1 || loaded.Moderation.AdminIDs[0] != 42 {
		t.Errorf("admin_ids: got %v", loaded.Moderation.AdminIDs)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Telegram.Token = "123:abc"
		cfg.LLM.APIKey = "sk-test"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"zero timeout", func(c *Config) { c.LLM.TimeoutSeconds = 0 }},
		{"zero max input", func(c *Config) { c.LLM.MaxInputChars = 0 }},
		{"threshold below range", func(c *Config) { c.Moderation.ConfidenceThreshold = -0.1 }},
		{"threshold above range", func(c *Config) { c.Moderation.ConfidenceThreshold = 1.1 }},
		{"negative notify ttl", func(c *Config) { c.Moderation.NotifyTTLSeconds = -1 }},
		{"zero report window", func(c *Config) { c.Reports.WindowHours = 0 }},
	}
	for _, tc := range cases {
		cfg := valid()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestPromptTemplates_Fallback(t *testing.T) {
	var llm LLMConfig
	if llm.SpamPromptTemplate() != SpamPrompt {
		t.Error("empty prompt should fall back to the default template")
	}
	llm.Prompt = "custom {message_text}"
	if llm.SpamPromptTemplate() != "custom {message_text}" {
		t.Error("configured prompt should win")
	}
	if llm.UsernamePromptTemplate() != UsernamePrompt {
		t.Error("empty username prompt should fall back to the default template")
	}
}
