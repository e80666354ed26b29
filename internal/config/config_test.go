package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://newsapi.org", cfg.News.BaseURL)
	assert.Equal(t, 5, cfg.News.PageSize)
	assert.Equal(t, 2, cfg.News.MaxPages)
	assert.Equal(t, "last-news.json", cfg.History.Path)
	assert.Equal(t, ":8000", cfg.Proxy.Addr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().News.BaseURL, cfg.News.BaseURL)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
news:
  query: quantum computing
  max_pages: 3
account:
  email: file@example.com
`), 0o644))

	t.Setenv("ACCOUNT_EMAIL", "env@example.com")
	t.Setenv("NEWS_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quantum computing", cfg.News.Query)
	assert.Equal(t, 3, cfg.News.MaxPages)
	assert.Equal(t, "env@example.com", cfg.Account.Email, "env wins over file")
	assert.Equal(t, "env-key", cfg.News.APIKey)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("news: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.email")

	cfg.Account = AccountConfig{Email: "a@b.c", Handle: "h", Password: "p"}
	assert.NoError(t, cfg.Validate())
}

func TestMask(t *testing.T) {
	assert.Equal(t, "unset", Mask(""))
	assert.Equal(t, "**", Mask("ab"))
	assert.Equal(t, "se…", Mask("secretvalue"))
}
