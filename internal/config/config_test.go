package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config that passes validation, for tests to
// mutate one field at a time.
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database.Database = "erp"
	cfg.Database.User = "etl"
	cfg.Database.Password = "secret"

	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_AppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
server = "db.internal"
database = "erp"
user = "etl"
password = "secret"

[drive]
folder = "Facturas 2026"

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Server)
	assert.Equal(t, defaultPort, cfg.Database.Port, "unset fields keep defaults")
	assert.Equal(t, "Facturas 2026", cfg.Drive.Folder)
	assert.Equal(t, defaultFilenameTemplate, cfg.Drive.FilenameTemplate)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Database.Query, "default query survives")
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `[database`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultFolder, cfg.Drive.Folder)
}

func TestResolve_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[database]
database = "erp"
user = "etl"
`)

	env := EnvOverrides{
		ConfigPath: path,
		TokenPath:  "/run/secrets/token.json",
		DBPassword: "from-env",
	}

	cfg, err := Resolve(env, "")
	require.NoError(t, err)
	assert.Equal(t, "/run/secrets/token.json", cfg.Drive.TokenPath)
	assert.Equal(t, "from-env", cfg.Database.Password)
}

func TestResolve_FlagBeatsEnv(t *testing.T) {
	flagPath := writeConfig(t, `
[database]
database = "from_flag"
user = "etl"
`)

	env := EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}

	cfg, err := Resolve(env, flagPath)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.Database.Database)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty server", func(c *Config) { c.Database.Server = "" }, "database.server"},
		{"bad port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"empty database", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"no user without trusted", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"trusted allows no user", func(c *Config) {
			c.Database.User = ""
			c.Database.TrustedConnection = true
		}, ""},
		{"empty query", func(c *Config) { c.Database.Query = "  " }, "database.query"},
		{"empty folder", func(c *Config) { c.Drive.Folder = "" }, "drive.folder"},
		{"empty token path", func(c *Config) { c.Drive.TokenPath = "" }, "drive.token_path"},
		{"template without placeholder", func(c *Config) {
			c.Drive.FilenameTemplate = "factura.json"
		}, "filename_template"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Server:   "db.internal",
		Port:     1433,
		Database: "erp",
		User:     "etl",
		Password: "p@ss:word",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "sqlserver://")
	assert.Contains(t, dsn, "db.internal:1433")
	assert.Contains(t, dsn, "database=erp")
	assert.Contains(t, dsn, "etl:")
}

func TestDSN_TrustedConnection(t *testing.T) {
	d := DatabaseConfig{
		Server:            "db.internal",
		Port:              1433,
		Database:          "erp",
		TrustedConnection: true,
	}

	dsn := d.DSN()
	assert.NotContains(t, dsn, "@", "no user info with integrated auth")
	assert.Contains(t, dsn, "trusted_connection=yes")
}
