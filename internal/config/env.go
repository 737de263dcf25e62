package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "INVOICEDRIVE_CONFIG"
	EnvTokenPath  = "INVOICEDRIVE_TOKEN_PATH"
	EnvDBPassword = "INVOICEDRIVE_DB_PASSWORD"
)

// EnvOverrides holds values derived from environment variables. The
// password override exists so the config file does not have to hold a
// secret in plain text.
type EnvOverrides struct {
	ConfigPath string // INVOICEDRIVE_CONFIG: override config file path
	TokenPath  string // INVOICEDRIVE_TOKEN_PATH: override saved-token path
	DBPassword string // INVOICEDRIVE_DB_PASSWORD: override database password
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		TokenPath:  os.Getenv(EnvTokenPath),
		DBPassword: os.Getenv(EnvDBPassword),
	}
}
