// Package config loads and validates the TOML configuration for the
// invoice ETL job: source database, Drive destination, and logging.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Config is the top-level configuration, decoded from TOML.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Drive    DriveConfig    `toml:"drive"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DatabaseConfig describes the SQL Server source.
type DatabaseConfig struct {
	Server            string `toml:"server"`
	Port              int    `toml:"port"`
	Database          string `toml:"database"`
	User              string `toml:"user"`
	Password          string `toml:"password"`
	TrustedConnection bool   `toml:"trusted_connection"`
	Query             string `toml:"query"`
}

// DriveConfig describes the Google Drive destination.
type DriveConfig struct {
	Folder           string `toml:"folder"`
	TokenPath        string `toml:"token_path"`
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
	FilenameTemplate string `toml:"filename_template"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DSN builds a sqlserver:// connection URL for database/sql.
// With trusted_connection, no user info is included and the driver falls
// back to integrated security.
func (d DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", d.Server, d.Port),
	}

	q := url.Values{}
	q.Set("database", d.Database)

	if d.TrustedConnection {
		q.Set("trusted_connection", "yes")
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}

	u.RawQuery = q.Encode()

	return u.String()
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "invoicedrive", "config.toml")
}

// DefaultTokenPath returns the conventional saved-token location.
func DefaultTokenPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, "invoicedrive", "token.json")
}
