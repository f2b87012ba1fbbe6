package config

import (
	"fmt"
	"os"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validNaming = map[string]bool{
	"flat": true, "author": true, "author_series": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Engine.URL == "" {
		errs = append(errs, "engine.url: required")
	}

	if c.Library.Root == "" {
		errs = append(errs, "library.root: required")
	}
	if !validNaming[c.Library.Naming] {
		errs = append(errs, fmt.Sprintf("library.naming: must be one of flat, author, author_series; got %q", c.Library.Naming))
	}

	if c.Workflow.PollInterval < 0 {
		errs = append(errs, fmt.Sprintf("workflow.poll_interval_seconds: must be positive, got %d", c.Workflow.PollInterval))
	}
	if c.Network.CheckInterval < 0 {
		errs = append(errs, fmt.Sprintf("network.check_interval_seconds: must be positive, got %d", c.Network.CheckInterval))
	}

	// Library path warning (non-fatal in practice, reported for visibility)
	if c.Library.Root != "" {
		if _, err := os.Stat(c.Library.Root); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("library.root: warning: directory %q does not exist", c.Library.Root))
		}
	}

	return errs
}
