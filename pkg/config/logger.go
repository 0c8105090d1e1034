package config

import "fmt"

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Environment variables (LOG_LEVEL, LOG_FILE, LOG_FORMAT)
//  3. Config file (logger section)
//  4. Defaults (info level, simple format, stderr)
//
// Example:
//
//	logger:
//	  level: info
//	  file: cogito.log
//	  format: simple
type LoggerConfig struct {
	// Level specifies the log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// File specifies the log file path.
	// If empty, logs go to stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File,description=Log file path (stderr when empty)"`

	// Format specifies the log format: "simple" (level + message) or
	// "verbose" (time + level + message).
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,enum=simple,enum=verbose,default=simple"`
}

// SetDefaults applies default values.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" {
		validLevels := map[string]bool{
			"debug":   true,
			"info":    true,
			"warn":    true,
			"warning": true,
			"error":   true,
		}
		if !validLevels[c.Level] {
			return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
		}
	}
	return nil
}
