package server

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/Brownie44l1/minihttp/internal/config"
)

// maxLoggedValue bounds client-controlled strings in log entries
const maxLoggedValue = 100

func iso8601MicroTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000000Z0700"))
}

// NewLogger creates the top-level logger. The returned level may be changed
// while the logger is in use.
func NewLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("log level: %w", err)
	}

	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = iso8601MicroTimeEncoder

	var encoding string
	development := true
	switch cfg.Format {
	case "json":
		encoding = "json"
		development = false
	case "text":
		encoding = "console"
		var color bool
		switch cfg.Color {
		case "yes":
			color = true
		case "no":
			color = false
		case "auto", "":
			color = term.IsTerminal(int(os.Stderr.Fd()))
		default:
			return nil, zap.AtomicLevel{}, fmt.Errorf("unexpected log color: %s", cfg.Color)
		}
		if color {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("unexpected log format: %s", cfg.Format)
	}

	atom := zap.NewAtomicLevelAt(level)
	zc := zap.Config{
		Level:            atom,
		Development:      development,
		Encoding:         encoding,
		EncoderConfig:    ec,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, atom, nil
}

// truncate shortens client-supplied values before they are logged
func truncate(s string) string {
	if len(s) > maxLoggedValue {
		return s[:maxLoggedValue] + "...[truncated]"
	}
	return s
}
