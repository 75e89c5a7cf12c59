package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool `envconfig:"DEBUG" split_words:"true" default:"false"`
	PrettyFormat bool `envconfig:"PRETTY_FORMAT" split_words:"true" default:"false"`

	// Caller adds file:line to every entry.
	Caller bool `envconfig:"CALLER" split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Caller: true,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init configures the global logger. Logs go to stderr so they never mix with
// the chat transcript on stdout.
func Init(opts ...Config) {
	InitWriter(os.Stderr, opts...)
}

func InitWriter(w io.Writer, opts ...Config) {
	conf := safe(opts...)

	if conf.PrettyFormat {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if conf.Caller {
		log.Logger = log.Logger.With().Caller().Stack().Logger()
	}
}
