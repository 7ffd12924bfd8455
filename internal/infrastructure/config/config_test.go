package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every alias so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, alias := range envAliases {
		t.Setenv(alias, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(15<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "gpt-4.1-mini", cfg.AI.TextModel)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 10*time.Second, cfg.RecipeFetch.Timeout)
	assert.Equal(t, "2024-10", cfg.Shopify.APIVersion)
	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.False(t, cfg.Archive.Enabled)
	assert.False(t, cfg.RecipeFetch.AllowPrivateNetworks)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ConventionalEnvNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("SHOPIFY_STORE", "noats-shop")
	t.Setenv("SHOPIFY_ADMIN_API_ACCESS_TOKEN", "shpat_123")
	t.Setenv("MAILERLITE_API_KEY", "ml-key")
	t.Setenv("MAILERLITE_GROUP_ID", "42")
	t.Setenv("PORT", "8081")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/plans")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.AI.OpenAIKey)
	assert.Equal(t, "gpt-4o", cfg.AI.TextModel)
	assert.Equal(t, "noats-shop", cfg.Shopify.Store)
	assert.Equal(t, "shpat_123", cfg.Shopify.AccessToken)
	assert.Equal(t, "ml-key", cfg.MailerLite.APIKey)
	assert.Equal(t, "42", cfg.MailerLite.GroupID)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Archive.Driver)
	assert.Empty(t, cfg.Warnings())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("NOATS_SERVER_PORT", "9090")
	t.Setenv("NOATS_AI_TIMEOUT", "5s")
	t.Setenv("NOATS_ARCHIVE_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "server:\n  port: 4000\ncatalog:\n  path: /srv/catalog.yaml\nlinks:\n  transform_url: https://example.com/t\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "/srv/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, "https://example.com/t", cfg.Links.TransformURL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"NOATS_SERVER_PORT":              "70000",
		"NOATS_AI_TIMEOUT":               "0s",
		"NOATS_SYNC_WORKERS":             "0",
		"NOATS_MONITORING_SAMPLING_RATE": "1.5",
	}
	for env, value := range cases {
		t.Run(env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env, value)

			_, err := Load("")
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestValidate_ArchiveDriver(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Archive.Enabled = true
	cfg.Archive.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.Archive.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PrivateRecipeFetchOutsideProduction(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.RecipeFetch.AllowPrivateNetworks = true
	assert.NoError(t, cfg.Validate())

	cfg.App.Environment = "production"
	assert.ErrorContains(t, cfg.Validate(), "allow_private_networks")
}

func TestWarnings(t *testing.T) {
	cfg := &Config{}
	cfg.Shopify.Store = "only-store"
	cfg.MailerLite.APIKey = "key"
	cfg.MailerLite.GroupID = "1"

	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "OPENAI_API_KEY")
	assert.Contains(t, warnings[1], "Shopify")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
