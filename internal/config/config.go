// Package config loads process configuration from an optional YAML file
// with environment overrides. Env keys use a MIRAGE_ prefix and double
// underscores as section separators, e.g. MIRAGE_SERVER__PORT.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Redis     RedisConfig     `koanf:"redis"`
	LLM       LLMConfig       `koanf:"llm"`
	Auth      AuthConfig      `koanf:"auth"`
	Templates TemplatesConfig `koanf:"templates"`
	Vector    VectorConfig    `koanf:"vector"`
	Gate      GateConfig      `koanf:"gate"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeoutSeconds bounds one request end to end and must leave
	// room for the generative call.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

type StorageConfig struct {
	Path          string `koanf:"path"`
	EmbeddingDims int    `koanf:"embedding_dims"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
}

type LLMConfig struct {
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	Model          string `koanf:"model"`
	EmbeddingModel string `koanf:"embedding_model"`
	// PromptTokenBudget caps the user prompt; zero disables clamping.
	PromptTokenBudget int `koanf:"prompt_token_budget"`
}

type AuthConfig struct {
	Secret string `koanf:"secret"`
}

type TemplatesConfig struct {
	Dir string `koanf:"dir"`
}

type VectorConfig struct {
	Threshold float64 `koanf:"threshold"`
}

type GateConfig struct {
	TTLSeconds int `koanf:"ttl_seconds"`
}

type RateLimitConfig struct {
	WindowSeconds int `koanf:"window_seconds"`
	Limit         int `koanf:"limit"`
}

// Load reads path (if it exists) then applies environment overrides and
// defaults. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("MIRAGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MIRAGE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"server.port":                    8000,
		"server.request_timeout_seconds": 120,
		"storage.path":                   "mirage.db",
		"storage.embedding_dims":         768,
		"redis.addr":                     "localhost:6379",
		"llm.model":                      "gpt-4o-mini",
		"llm.embedding_model":            "text-embedding-3-small",
		"llm.prompt_token_budget":        6000,
		"templates.dir":                  "templates",
		"vector.threshold":               0.8,
		"gate.ttl_seconds":               30,
		"ratelimit.window_seconds":       900,
		"ratelimit.limit":                10,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
