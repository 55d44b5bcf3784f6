package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps a stray watch-history config file in the package
// directory from leaking into the test.
func inTempDir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, 20.0, cfg.TMDB.RateLimit)
	assert.Equal(t, BackendSupabase, cfg.Storage.Backend)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, int64(5<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Supabase.URL)
	assert.Empty(t, cfg.TMDB.APIKey)
}

func TestLoadEnvOverride(t *testing.T) {
	inTempDir(t)
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service")
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("TMDB_TIMEOUT", "3s")
	t.Setenv("INGEST_WORKERS", "16")
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/wh")
	t.Setenv("LOG_FILE", "/tmp/ingest.log")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://abc.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "service", cfg.Supabase.ServiceKey)
	assert.Equal(t, "tmdb-key", cfg.TMDB.APIKey)
	assert.Equal(t, 3*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, 16, cfg.Ingest.Workers)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/wh", cfg.Postgres.DSN)
	assert.Equal(t, "/tmp/ingest.log", cfg.Log.File)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: mongo\nmongo:\n  uri: mongodb://localhost:27017\nhttp:\n  addr: \":8080\"\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, BackendMongo, cfg.Storage.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "watch_history", cfg.Mongo.Database)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"STORAGE_BACKEND":       "sqlite",
		"INGEST_WORKERS":        "0",
		"HTTP_MAX_UPLOAD_BYTES": "-1",
	}
	for env, value := range tests {
		t.Run(env, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(env, value)

			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
