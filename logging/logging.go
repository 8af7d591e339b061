// Package logging builds the service's zap loggers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger for env "local"/"dev"/"test" and a
// production JSON logger otherwise. level overrides the default level.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "local", "dev", "development", "test":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	if strings.TrimSpace(level) != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// GooseLogger adapts zap to goose's Printf/Fatalf logger.
type GooseLogger struct {
	S *zap.SugaredLogger
}

func NewGooseLogger(l *zap.Logger) *GooseLogger {
	return &GooseLogger{S: l.Named("goose").Sugar()}
}

func (g *GooseLogger) Printf(format string, v ...interface{}) {
	g.S.Infof(strings.TrimSpace(format), v...)
}

func (g *GooseLogger) Fatalf(format string, v ...interface{}) {
	g.S.Fatalf(strings.TrimSpace(format), v...)
}
