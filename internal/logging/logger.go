package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	Console    bool   `mapstructure:"console"`
	TimeFormat string `mapstructure:"time_format"`
}

// Setup initializes the global logger.
func Setup(cfg Config) {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: cfg.TimeFormat})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open log file")
		} else {
			writers = append(writers, file)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: cfg.TimeFormat})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("configured_level", cfg.Level).Msg("Invalid log level, defaulting to info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(level)
	}

	log.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("Logger initialized")
}

// Leveled adapts a zerolog logger to the key/value logging interface used by
// hashicorp/go-retryablehttp.
type Leveled struct {
	Logger zerolog.Logger
}

// NewLeveled wraps the global logger with a component field.
func NewLeveled(component string) *Leveled {
	return &Leveled{Logger: log.With().Str("component", component).Logger()}
}

func (l *Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.event(l.Logger.Error(), msg, keysAndValues)
}

func (l *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.event(l.Logger.Warn(), msg, keysAndValues)
}

func (l *Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.event(l.Logger.Info(), msg, keysAndValues)
}

func (l *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.event(l.Logger.Debug(), msg, keysAndValues)
}

func (l *Leveled) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	e.Msg(msg)
}
