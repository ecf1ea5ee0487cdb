package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogLevel stores the effective log level. It is informational only;
// nothing filters log output by level.
var LogLevel = ""

// SetupLogging configures the standard library logger to write to both
// stdout and file, creating the log file's directory if necessary.
func SetupLogging(c *Config) error {
	dir := filepath.Dir(c.LogFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	mw := io.MultiWriter(os.Stdout, f)
	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	LogLevel = c.LogLevel
	return nil
}
