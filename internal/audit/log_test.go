package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"konsult.org/internal/auth"
	"konsult.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := obs.Logger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestLogEventEnrichesFromContext(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-7")
	ctx = auth.ContextWithAccount(ctx, &auth.Account{ID: "acc-1"})

	if err := LogEvent(ctx, "auth.login", map[string]any{"email": "alice@example.com"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v (%s)", err, buf.String())
	}
	if entry["type"] != "audit" || entry["event"] != "auth.login" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-7" || entry["account_id"] != "acc-1" {
		t.Fatalf("missing context enrichment: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email"] != "alice@example.com" {
		t.Fatalf("unexpected fields: %v", entry["fields"])
	}
}

func TestLogEventWithoutContext(t *testing.T) {
	buf := captureLog(t)

	if err := LogEvent(context.Background(), "csrf.rejected", nil); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if _, present := entry["request_id"]; present {
		t.Fatal("request_id must be absent without a request context")
	}
	if _, present := entry["account_id"]; present {
		t.Fatal("account_id must be absent without an authenticated account")
	}
	if _, present := entry["fields"]; !present {
		t.Fatal("fields must always be present")
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-9 ")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("expected trimmed id, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	if ctx := WithRequestID(context.Background(), "   "); RequestIDFromContext(ctx) != "" {
		t.Fatal("blank ids must not be attached")
	}
}
