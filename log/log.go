// Package log wraps zerolog with the component and state-identifier
// context fields the node's subsystems attach to every entry.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration. It is carried in LocalNodeConfig.Log,
// which is not read from the YAML file (yaml:"-").
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Call once at node startup.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
}

// WithComponent scopes a logger to one subsystem: "trie", "store",
// "pipeline", "node".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithStateID attaches the commit counter of the state a log line is
// reporting about, so log lines can be correlated to a specific StateId
// without marshalling the full root set into every entry.
func WithStateID(commits uint64) zerolog.Logger {
	return Logger.With().Uint64("commits", commits).Logger()
}

// WithTxRef attaches a transaction reference's hex string.
func WithTxRef(component, txRef string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("tx", txRef).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) { Logger.Error().Err(err).Msgf(format, err) }
func Fatal(msg string)                { Logger.Fatal().Msg(msg) }

func init() {
	Init(Config{Level: InfoLevel, JSONOutput: true})
}
