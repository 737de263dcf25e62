package config

import (
	"fmt"
	"strings"
)

// referencePlaceholder must appear in the filename template; the load
// layer substitutes the invoice reference into it.
const referencePlaceholder = "{reference}"

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a Config for contradictions and missing required
// fields. Returns the first problem found.
func Validate(cfg *Config) error {
	if cfg.Database.Server == "" {
		return fmt.Errorf("database.server must not be empty")
	}

	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("database.port %d out of range", cfg.Database.Port)
	}

	if cfg.Database.Database == "" {
		return fmt.Errorf("database.database must not be empty")
	}

	if !cfg.Database.TrustedConnection && cfg.Database.User == "" {
		return fmt.Errorf("database.user required unless trusted_connection is set")
	}

	if strings.TrimSpace(cfg.Database.Query) == "" {
		return fmt.Errorf("database.query must not be empty")
	}

	if cfg.Drive.Folder == "" {
		return fmt.Errorf("drive.folder must not be empty")
	}

	if cfg.Drive.TokenPath == "" {
		return fmt.Errorf("drive.token_path must not be empty")
	}

	if !strings.Contains(cfg.Drive.FilenameTemplate, referencePlaceholder) {
		return fmt.Errorf("drive.filename_template must contain %s", referencePlaceholder)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}

	return nil
}
