package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Pipeline.BatchSize)
	assert.Equal(t, time.Second, cfg.Pipeline.BatchDelay)
	assert.Equal(t, "https://boardgamegeek.com/xmlapi2/", cfg.Catalog.BaseURL)
	assert.Equal(t, "https://boardgamegeek.com/boardgame/", cfg.Catalog.GameLinkBase)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Empty(t, cfg.Schedule.RefreshCron)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
pipeline:
  batch_size: 10
  batch_delay: 250ms
catalog:
  api_key: from-file
database:
  name: from_file
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("DATABASE_NAME", "from_env")
	t.Setenv("BGG_API_KEY", "legacy-key")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BatchDelay)
	assert.Equal(t, "from_env", cfg.Database.Name)
	assert.Equal(t, "legacy-key", cfg.Catalog.APIKey)
}

func TestLoad_RejectsOversizedBatch(t *testing.T) {
	t.Setenv("PIPELINE_BATCH_SIZE", "50")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Name: "games"}
	assert.Equal(t, "postgres://u:p@db:5433/games?sslmode=disable", d.DSN())
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("CATALOG_API_KEY", "token")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "token", cfg.Catalog.APIKey)
}

func TestDatabaseConfig_DSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{User: "board user", Password: "p@ss/w:rd?", Host: "db", Port: 5432, Name: "games"}

	u, err := url.Parse(d.DSN())
	require.NoError(t, err)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss/w:rd?", pass)
	assert.Equal(t, "board user", u.User.Username())
	assert.Equal(t, "db:5432", u.Host)

	pc, err := pgconn.ParseConfig(d.DSN())
	require.NoError(t, err)
	assert.Equal(t, "p@ss/w:rd?", pc.Password)
	assert.Equal(t, "games", pc.Database)
}
