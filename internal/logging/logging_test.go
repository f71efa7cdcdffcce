package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captureEntry(t *testing.T, log func(zerolog.Logger)) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	log(zerolog.New(&buf))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLogFetchFields(t *testing.T) {
	entry := captureEntry(t, func(l zerolog.Logger) {
		LogFetch(l, "BTC-USD", "1y", "1d", 250, 120*time.Millisecond)
	})

	if entry["event"] != "fetch" || entry["symbol"] != "BTC-USD" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["bars"] != float64(250) {
		t.Errorf("bars = %v, want 250", entry["bars"])
	}
	if entry["range"] != "1y" || entry["interval"] != "1d" {
		t.Errorf("range/interval wrong: %v", entry)
	}
}

func TestLogScanFields(t *testing.T) {
	entry := captureEntry(t, func(l zerolog.Logger) {
		LogScan(l, "BTC-USD", 60000, 250, 2)
	})

	if entry["event"] != "scan" || entry["symbol"] != "BTC-USD" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["level"] != float64(60000) {
		t.Errorf("level = %v, want 60000", entry["level"])
	}
	if entry["bars"] != float64(250) || entry["signals"] != float64(2) {
		t.Errorf("bars/signals wrong: %v", entry)
	}
}

func TestWithSymbol(t *testing.T) {
	entry := captureEntry(t, func(l zerolog.Logger) {
		sym := WithSymbol(l, "NQ=F")
		sym.Info().Msg("hello")
	})
	if entry["symbol"] != "NQ=F" {
		t.Errorf("symbol = %v, want NQ=F", entry["symbol"])
	}
}
