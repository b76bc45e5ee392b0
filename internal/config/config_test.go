package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("MIRAGE_SERVER__PORT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeoutSeconds != 120 {
		t.Errorf("request_timeout_seconds = %d, want 120", cfg.Server.RequestTimeoutSeconds)
	}
	if cfg.Storage.EmbeddingDims != 768 {
		t.Errorf("embedding_dims = %d, want 768", cfg.Storage.EmbeddingDims)
	}
	if cfg.Vector.Threshold != 0.8 {
		t.Errorf("threshold = %v, want 0.8", cfg.Vector.Threshold)
	}
	if cfg.RateLimit.WindowSeconds != 900 || cfg.RateLimit.Limit != 10 {
		t.Errorf("ratelimit = %d/%d, want 900/10", cfg.RateLimit.WindowSeconds, cfg.RateLimit.Limit)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("MIRAGE_SERVER__PORT", "9000")
	os.Setenv("MIRAGE_LLM__API_KEY", "sk-test")
	defer os.Unsetenv("MIRAGE_SERVER__PORT")
	defer os.Unsetenv("MIRAGE_LLM__API_KEY")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.LLM.APIKey)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7777
storage:
  path: /tmp/test.db
auth:
  secret: from-file
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("MIRAGE_AUTH__SECRET", "from-env")
	defer os.Unsetenv("MIRAGE_AUTH__SECRET")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Storage.Path != "/tmp/test.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("secret = %q, env must override file", cfg.Auth.Secret)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err != nil {
		t.Fatalf("Load() error = %v, want nil for absent file", err)
	}
}
