package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Debug: false})
	t.Cleanup(func() { Init() })

	log.Debug().Msg("hidden")
	log.Info().Str("component", "test").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1:\n%s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["message"] != "shown" || entry["component"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["caller"]; ok {
		t.Fatalf("caller present with Caller=false: %v", entry)
	}
}

func TestInitWriterDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Debug: true, Caller: true})
	t.Cleanup(func() { Init() })

	log.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte(`"caller"`)) || !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
