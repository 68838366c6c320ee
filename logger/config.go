package logger

// Config holds logging configuration
type Config struct {
	Level string `json:"level"` // debug, info, warn, error (default: info)
	File  string `json:"file"`  // optional log file path, console only when empty
}

// SetDefaults fills in default values
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
