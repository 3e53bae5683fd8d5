package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithProductID(ctx, "0190f1a2")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"product_id":"0190f1a2"`)) {
		t.Fatalf("expected product_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info and debug to be filtered, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestWithFieldsTypedValues(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	ctx := log.WithFields(context.Background(), map[string]any{
		"cause":       errors.New("no rows"),
		"occurred_at": at,
		"rules":       2,
	})
	log.Info(ctx, "fields")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not json: %v; entry=%s", err, buf.String())
	}
	if entry["cause"] != "no rows" {
		t.Fatalf("expected error rendered as message, got %v", entry["cause"])
	}
	if entry["occurred_at"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("expected RFC3339 time, got %v", entry["occurred_at"])
	}
	if entry["rules"] != float64(2) {
		t.Fatalf("expected numeric field, got %v", entry["rules"])
	}
}

func TestWithFieldsOrderIsStable(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	ctx := log.WithFields(context.Background(), map[string]any{"b": 1, "a": 2, "c": 3})
	log.Info(ctx, "ordered")

	line := buf.String()
	if !(strings.Index(line, `"a"`) < strings.Index(line, `"b"`) && strings.Index(line, `"b"`) < strings.Index(line, `"c"`)) {
		t.Fatalf("expected sorted keys, got %s", line)
	}
}

func TestErrorStackStartsAtCaller(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Error(context.Background(), "boom", errors.New("boom"))

	var entry struct {
		Stack []string `json:"stack"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not json: %v", err)
	}
	if len(entry.Stack) == 0 || !strings.Contains(entry.Stack[0], "TestErrorStackStartsAtCaller") {
		t.Fatalf("expected first frame to be the caller, got %v", entry.Stack)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	ctx := log.WithField(context.Background(), "k", "v")
	log.Error(ctx, "ignored", errors.New("x"))
	if log.Level() != zerolog.Disabled {
		t.Fatalf("expected nop logger to be disabled, got %v", log.Level())
	}
}
