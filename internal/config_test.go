package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
summary_model = "gpt-4o-mini"
chunk_size = 512
paper_store = "milvus"
session_ttl = "5m"
cors_origins = ["https://app.example"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("INSIGHT_TOP_K", "7")

	cfg, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	if cfg.SummaryModel != "gpt-4o-mini" || cfg.ChunkSize != 512 || cfg.PaperStore != "milvus" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.OpenAIAPIKey != "sk-from-env" {
		t.Errorf("OpenAIAPIKey = %q", cfg.OpenAIAPIKey)
	}
	if cfg.TopK != 7 {
		t.Errorf("TopK = %d, want env override 7", cfg.TopK)
	}
	// untouched defaults
	if cfg.ChunkOverlap != 20 || cfg.VideoTopK != 2 || cfg.ChatProvider != "openai" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestInitConfigErrors(t *testing.T) {
	if _, err := InitConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing explicit config file: want error")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`chat_provider = "anthropic"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := InitConfig(path); err == nil || !strings.Contains(err.Error(), "chat_provider") {
		t.Errorf("err = %v, want chat_provider validation error", err)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return testConfig(t) }

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := map[string]func(*Config){
		"zero chunk size":       func(c *Config) { c.ChunkSize = 0 },
		"overlap past size":     func(c *Config) { c.ChunkOverlap = c.ChunkSize },
		"negative overlap":      func(c *Config) { c.ChunkOverlap = -1 },
		"zero top k":            func(c *Config) { c.TopK = 0 },
		"zero video top k":      func(c *Config) { c.VideoTopK = 0 },
		"unknown chat provider": func(c *Config) { c.ChatProvider = "local" },
		"unknown paper store":   func(c *Config) { c.PaperStore = "sqlite" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestEnsureDefaultFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "insight")
	if err := EnsureDefaultConfig(dir); err != nil {
		t.Fatalf("EnsureDefaultConfig: %v", err)
	}
	if err := EnsureDefaultPrompt(dir); err != nil {
		t.Fatalf("EnsureDefaultPrompt: %v", err)
	}

	prompt, err := os.ReadFile(filepath.Join(dir, "prompt.txt"))
	if err != nil {
		t.Fatal(err)
	}
	mustContain(t, string(prompt), "{{.Context}}")

	// existing files are left alone
	custom := []byte(`summary_model = "gpt-4o-mini"`)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), custom, 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDefaultConfig(dir); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "config.toml"))
	if string(got) != string(custom) {
		t.Errorf("config.toml overwritten: %q", got)
	}

	// the shipped config parses and validates
	fresh := t.TempDir()
	if err := EnsureDefaultConfig(fresh); err != nil {
		t.Fatal(err)
	}
	if _, err := InitConfig(filepath.Join(fresh, "config.toml")); err != nil {
		t.Errorf("default config.toml: %v", err)
	}
}
