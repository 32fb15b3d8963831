package app

import (
	"strings"

	"github.com/visicontrol/visicontrol/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
// Non-production environments log with the console encoder.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, !cfg.IsProduction())
}
