// Package config holds all postpilot configuration: an optional YAML file
// overridden by environment variables. Credentials are opaque values and are
// never logged in full.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all postpilot configuration.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	News       NewsConfig       `yaml:"news"`
	Generation GenerationConfig `yaml:"generation"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	History    HistoryConfig    `yaml:"history"`
	Proxy      ProxyConfig      `yaml:"proxy"`
}

// AccountConfig identifies the account being posted to. Email is the login
// identifier; Handle answers re-verification screens.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Handle   string `yaml:"handle"`
	Password string `yaml:"password"`
}

// NewsConfig configures the article provider.
type NewsConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Query    string `yaml:"query"`
	Language string `yaml:"language"`
	PageSize int    `yaml:"page_size"`
	MaxPages int    `yaml:"max_pages"`
}

// GenerationConfig configures the text-generation endpoint. BaseURL may be
// any OpenAI-compatible chat-completions service.
type GenerationConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PublisherConfig configures the browser session and diagnostics.
type PublisherConfig struct {
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	ArtifactsDir        string `yaml:"artifacts_dir"`
}

// HistoryConfig configures the recency cache.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ProxyConfig configures the local test proxy.
type ProxyConfig struct {
	Addr             string `yaml:"addr"`
	SocialOrigin     string `yaml:"social_origin"`
	GenerationOrigin string `yaml:"generation_origin"`
	DefaultOrigin    string `yaml:"default_origin"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		News: NewsConfig{
			BaseURL:  "https://newsapi.org",
			Query:    "artificial intelligence",
			Language: "en",
			PageSize: 5,
			MaxPages: 2,
		},
		Generation: GenerationConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "anthropic/claude-3.7-sonnet",
			MaxTokens: 280,
		},
		Publisher: PublisherConfig{
			Headless:            false,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 60000,
			ArtifactsDir:        "img-execution",
		},
		History: HistoryConfig{
			Path: "last-news.json",
		},
		Proxy: ProxyConfig{
			Addr:             ":8000",
			SocialOrigin:     "https://twitter.com",
			GenerationOrigin: "https://openrouter.ai",
			DefaultOrigin:    "https://jsonplaceholder.typicode.com",
		},
	}
}

// Load reads config from path (if it exists) over the defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setIfEnv := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfEnv(&c.Account.Email, "ACCOUNT_EMAIL")
	setIfEnv(&c.Account.Handle, "ACCOUNT_HANDLE")
	setIfEnv(&c.Account.Password, "ACCOUNT_PASSWORD")
	setIfEnv(&c.News.APIKey, "NEWS_API_KEY")
	setIfEnv(&c.News.BaseURL, "NEWS_BASE_URL")
	setIfEnv(&c.Generation.APIKey, "GENERATION_API_KEY")
	setIfEnv(&c.Generation.BaseURL, "GENERATION_BASE_URL")
	setIfEnv(&c.Generation.Model, "GENERATION_MODEL")
}

// Validate checks that a publish run has the values it cannot proceed
// without.
func (c *Config) Validate() error {
	var missing []string
	if c.Account.Email == "" {
		missing = append(missing, "account.email (ACCOUNT_EMAIL)")
	}
	if c.Account.Handle == "" {
		missing = append(missing, "account.handle (ACCOUNT_HANDLE)")
	}
	if c.Account.Password == "" {
		missing = append(missing, "account.password (ACCOUNT_PASSWORD)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Mask renders a secret for logging: at most the first two characters
// followed by an ellipsis, or "unset" when empty.
func Mask(secret string) string {
	if secret == "" {
		return "unset"
	}
	runes := []rune(secret)
	if len(runes) <= 2 {
		return "**"
	}
	return string(runes[:2]) + "…"
}
