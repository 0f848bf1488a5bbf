package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.NotEmpty(t, cfg.Database.DSN)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.NotEmpty(t, cfg.Scheduler.FetchCron)
	require.NotEmpty(t, cfg.Scheduler.ExtractCron)
	require.NotNil(t, cfg.Scheduler.Location())
	require.Greater(t, cfg.Reasoner.MaxTokens, 0)
	require.NotEmpty(t, cfg.Sources)

	kinds := map[string]bool{}
	for _, src := range cfg.Sources {
		require.NotEmpty(t, src.Name)
		require.NotEmpty(t, src.URL)
		kinds[src.Kind] = true
	}
	require.True(t, kinds["rss"])
	require.True(t, kinds["newsapi"])
	require.True(t, kinds["docket"])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(databaseDSNEnv, "postgres://user:pw@db/courtwatch")
	t.Setenv(reasonerKeyEnv, "sk-test")
	t.Setenv(reasonerModelEnv, "reasoner-large")
	t.Setenv(httpAddrEnv, ":9090")

	cfg := Load()
	require.Equal(t, "postgres://user:pw@db/courtwatch", cfg.Database.DSN)
	require.Equal(t, "sk-test", cfg.Reasoner.APIKey)
	require.Equal(t, "reasoner-large", cfg.Reasoner.Model)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoadFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courtwatch.yaml")
	payload := `
database:
  dsn: merged.db
scheduler:
  fetchCron: "*/5 * * * *"
  timezone: America/Chicago
sources:
  - name: only-source
    kind: rss
    url: https://example.com/feed
    cooldown:
      defaultMinutes: 45
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	require.Equal(t, "merged.db", cfg.Database.DSN)
	require.Equal(t, "*/5 * * * *", cfg.Scheduler.FetchCron)
	require.Equal(t, "America/Chicago", cfg.Scheduler.Location().String())
	// untouched fields keep their defaults
	require.Equal(t, "0 6,18 * * *", cfg.Scheduler.ExtractCron)

	require.Len(t, cfg.Sources, 1)
	require.Equal(t, "only-source", cfg.Sources[0].Name)
	require.Equal(t, 45, cfg.Sources[0].Cooldown.DefaultMinutes)
}

func TestLoadBadFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	require.NotEmpty(t, cfg.Sources)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
}
