package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Name    string        `envconfig:"NAME" default:"orchestrator"`
	Workers int           `envconfig:"WORKERS" default:"2"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

var errNoWorkers = errors.New("workers must be > 0")

func (c sampleConfig) Validate() error {
	if c.Workers <= 0 {
		return errNoWorkers
	}
	return nil
}

func TestNewAppliesDefaults(t *testing.T) {
	conf, err := New[sampleConfig]("CFGTEST_DEFAULTS")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Name != "orchestrator" || conf.Workers != 2 || conf.Timeout != 5*time.Second {
		t.Fatalf("unexpected config: %+v", conf)
	}
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("CFGTEST_ENV_WORKERS", "7")
	t.Setenv("CFGTEST_ENV_TIMEOUT", "250ms")

	conf, err := New[sampleConfig]("CFGTEST_ENV")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Workers != 7 || conf.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected config: %+v", conf)
	}
}

func TestNewRunsValidate(t *testing.T) {
	t.Setenv("CFGTEST_BAD_WORKERS", "0")

	if _, err := New[sampleConfig]("CFGTEST_BAD"); !errors.Is(err, errNoWorkers) {
		t.Fatalf("New() error = %v, want errNoWorkers", err)
	}
}

func TestExportEnvironmentFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CFGTEST_FILE_NAME=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_FILE_NAME") })

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}
	if got := os.Getenv("CFGTEST_FILE_NAME"); got != "from-file" {
		t.Fatalf("CFGTEST_FILE_NAME = %q, want from-file", got)
	}
}
