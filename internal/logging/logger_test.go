package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	logger.Warn().Str("venue", "Crawfish").Msg("shown")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["venue"] != "Crawfish" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestWithRunID(t *testing.T) {
	ctx, id := WithRunID(context.Background())
	if id == "" || RunID(ctx) != id {
		t.Fatalf("run id not stored: %q / %q", id, RunID(ctx))
	}

	again, same := WithRunID(ctx)
	if same != id || again != ctx {
		t.Fatal("expected existing run id to be reused")
	}
}

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	SetGlobalLogger(New(Config{Output: &buf}))
	defer SetGlobalLogger(prev)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, RunIDKey, "run-1")
	WithContext(ctx).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["run_id"] != "run-1" {
		t.Fatalf("missing ids in %v", entry)
	}
}
