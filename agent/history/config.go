package history

import (
	"strings"
	"time"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"5s"`

	// RestoreTurns is how many logged turns refill an empty session at startup.
	RestoreTurns int `envconfig:"RESTORE_TURNS" split_words:"true" default:"20"`
}

func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}
