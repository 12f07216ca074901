package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/berrythewa/clipdrive/internal/config"
)

// LoggerOptions adjusts logger construction beyond what the config holds.
type LoggerOptions struct {
	// Level overrides cfg.Log.Level when set.
	Level string
	// Quiet disables the stderr tee.
	Quiet bool
	// Stderr is the console sink; os.Stderr when nil.
	Stderr *os.File
}

// NewLogger creates the application logger: an append-only file sink, teed
// to stderr when it is a terminal.
func NewLogger(cfg *config.Config, opts LoggerOptions) (*zap.Logger, error) {
	levelName := cfg.Log.Level
	if opts.Level != "" {
		levelName = opts.Level
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	logFile := cfg.SystemPaths.LogFile
	if logFile == "" {
		return nil, fmt.Errorf("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), level),
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if cfg.Log.Console && !opts.Quiet && IsTerminal(stderr) {
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
