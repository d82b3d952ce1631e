package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely components log.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `json:"level"`
	// File enables a rotating log file in addition to stdout.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	level            = zerolog.InfoLevel
	file   *lumberjack.Logger
)

// Configure sets the process-wide output and level used by New. It returns a
// close function releasing the log file, if any.
func Configure(opts Options) (func() error, error) {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	var w io.Writer = os.Stdout
	var lj *lumberjack.Logger
	if opts.File != "" {
		lj = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = zerolog.MultiLevelWriter(os.Stdout, lj)
	}
	mu.Lock()
	output, level, file = w, lvl, lj
	mu.Unlock()
	return func() error {
		if lj == nil {
			return nil
		}
		return lj.Close()
	}, nil
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger using the APP_ENV environment variable
// to determine the output format. All logs include the provided component field.
func NewZerologLogger(component string) Logger {
	mu.RLock()
	w, lvl := output, level
	mu.RUnlock()
	return newZerolog(w, lvl, component)
}

func newZerolog(w io.Writer, lvl zerolog.Level, component string) *ZerologLogger {
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" && w == os.Stdout {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Infow(msg string, fields map[string]any) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
