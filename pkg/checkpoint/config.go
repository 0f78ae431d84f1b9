package checkpoint

import "time"

// Config configures checkpoint storage and recovery behavior.
type Config struct {
	// Dir is the directory checkpoints are written under. Defaults to
	// "checkpoints", relative to the working directory.
	Dir string `yaml:"dir,omitempty"`

	// MaxAge bounds how old a checkpoint may be and still be considered
	// recoverable; zero means no expiry.
	MaxAge time.Duration `yaml:"max_age,omitempty"`

	// AutoResume enables RecoverOnStartup scanning Dir for orphaned
	// checkpoints and invoking the resume callback for each.
	AutoResume bool `yaml:"auto_resume,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "checkpoints"
	}
}

// IsExpired reports whether a checkpoint taken at t has aged past MaxAge.
func (c *Config) IsExpired(t time.Time) bool {
	if c.MaxAge <= 0 {
		return false
	}
	return time.Since(t) > c.MaxAge
}
