// Package logging builds the structured logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects the level, output format and PII redaction.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
	Redact bool   `yaml:"redact"`
}

// New returns a logger writing to w (stderr when nil).
func New(cfg Config, w io.Writer) (*logrus.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = lv
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "msg"},
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format %q: want json or text", cfg.Format)
	}

	if cfg.Redact {
		l.AddHook(RedactHook{})
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
