package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// newTestLogger builds a JSON slogLogger writing to buf.
func newTestLogger(t *testing.T, buf *bytes.Buffer, opts Options) *slogLogger {
	t.Helper()
	opts.Writer = buf
	opts.JSON = true
	l, err := newSlog(opts)
	if err != nil {
		t.Fatalf("newSlog: %v", err)
	}
	return l.(*slogLogger)
}

// lastRecord parses the last JSON line in buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("parse log line: %v\nraw: %s", err, buf.String())
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "trace", "fatal", "info error"} {
		if _, err := ParseLevel(bad); err == nil {
			t.Fatalf("ParseLevel(%q) should fail", bad)
		}
	}
}

func TestNew_BaseAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users", Version: "1.2.3", Commit: "abc"})

	l.Info(context.Background(), "started", "port", 8080)

	rec := lastRecord(t, &buf)
	if rec["app"] != "users" || rec["version"] != "1.2.3" || rec["commit"] != "abc" {
		t.Fatalf("base attrs missing: %v", rec)
	}
	if rec["port"] != float64(8080) {
		t.Fatalf("port = %v", rec["port"])
	}
	if rec["msg"] != "started" {
		t.Fatalf("msg = %v", rec["msg"])
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users", Level: slog.LevelWarn})
	ctx := context.Background()

	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	if buf.Len() != 0 {
		t.Fatalf("below-level records written: %s", buf.String())
	}

	l.Warn(ctx, "kept")
	if lastRecord(t, &buf)["level"] != "WARN" {
		t.Fatalf("got %s", buf.String())
	}
}

func TestSlogLogger_With_CopyOnWrite(t *testing.T) {
	var buf bytes.Buffer
	parent := newTestLogger(t, &buf, Options{App: "users"})
	a := parent.With("op", "create")
	b := parent.With("op", "delete", 42, "ignored", "dangling")

	ctx := context.Background()
	a.Info(ctx, "a")
	if lastRecord(t, &buf)["op"] != "create" {
		t.Fatalf("child a: %s", buf.String())
	}
	b.Info(ctx, "b")
	rec := lastRecord(t, &buf)
	if rec["op"] != "delete" {
		t.Fatalf("child b: %v", rec)
	}
	if _, ok := rec["dangling"]; ok {
		t.Fatal("odd trailing key should be dropped")
	}
	parent.Info(ctx, "p")
	if _, ok := lastRecord(t, &buf)["op"]; ok {
		t.Fatal("parent should not see child attrs")
	}
}

func TestSlogLogger_Error_Enriched(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users", IncludeErrorLinks: true})

	base := errors.New("connection reset")
	err := xerrors.Wrap(xerrors.WithKind(base, xerrors.KindUnavailable, "store unavailable"), "get user")
	l.Error(context.Background(), err, "request failed", "path", "/api/users/1")

	rec := lastRecord(t, &buf)
	if rec["error_kind"] != "unavailable" {
		t.Fatalf("error_kind = %v", rec["error_kind"])
	}
	if rec["cause_type"] != "*errors.errorString" {
		t.Fatalf("cause_type = %v", rec["cause_type"])
	}
	chain, ok := rec["error_chain"].([]any)
	if !ok || len(chain) != 3 {
		t.Fatalf("error_chain = %v", rec["error_chain"])
	}
	links, ok := rec["error_links"].([]any)
	if !ok || len(links) < 2 {
		t.Fatalf("error_links = %v", rec["error_links"])
	}
	if s, _ := rec["stack"].(string); s == "" {
		t.Fatal("error record should carry a stack")
	}
}

func TestSlogLogger_Error_NilError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users"})

	l.Error(context.Background(), nil, "odd")

	rec := lastRecord(t, &buf)
	if _, ok := rec["error_kind"]; ok {
		t.Fatal("nil error should not be enriched")
	}
}

func TestOtelHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users"})

	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.Info(ctx, "traced")

	rec := lastRecord(t, &buf)
	if rec["trace_id"] != tid.String() || rec["span_id"] != sid.String() {
		t.Fatalf("trace fields = %v / %v", rec["trace_id"], rec["span_id"])
	}

	l.Info(context.Background(), "untraced")
	if _, ok := lastRecord(t, &buf)["trace_id"]; ok {
		t.Fatal("no span, no trace_id")
	}
}

func TestStackHandler_OnlyAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users"})

	l.Warn(context.Background(), "no stack")
	if _, ok := lastRecord(t, &buf)["stack"]; ok {
		t.Fatal("warn should not carry a stack")
	}
}

func TestErrorChain(t *testing.T) {
	base := errors.New("eof")
	w := fmt.Errorf("read body: %w", base)
	got := errorChain(w)
	if len(got) != 2 || got[1] != "eof" {
		t.Fatalf("chain = %v", got)
	}

	joined := errors.Join(errors.New("a"), errors.New("b"))
	if got := errorChain(joined); len(got) != 3 {
		t.Fatalf("joined chain = %v", got)
	}

	if got := errorChain(nil); len(got) != 0 {
		t.Fatalf("nil chain = %v", got)
	}
}

func TestClassifyTypes_SkipsWrappers(t *testing.T) {
	type custom struct{ error }
	err := xerrors.Wrap(fmt.Errorf("x: %w", custom{errors.New("inner")}), "outer")

	surface, root := classifyTypes(err)
	if !strings.HasSuffix(surface, "custom") {
		t.Fatalf("surface = %q", surface)
	}
	if !strings.HasSuffix(root, "custom") {
		t.Fatalf("root = %q", root)
	}
}

func TestChainLinks_RespectsMax(t *testing.T) {
	err := xerrors.Wrap(xerrors.Wrap(xerrors.Wrap(errors.New("root"), "a"), "b"), "c")

	if got := chainLinks(err, 2); len(got) != 2 {
		t.Fatalf("links = %d, want 2", len(got))
	}
	if got := chainLinks(nil, 8); len(got) != 0 {
		t.Fatalf("nil links = %v", got)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()).(nopLogger); !ok {
		t.Fatal("empty context should yield the nop logger")
	}

	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "users"})
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != Logger(l) {
		t.Fatal("FromContext should return the stored logger")
	}

	ctx = WithContext(ctx, nil)
	if _, ok := FromContext(ctx).(nopLogger); !ok {
		t.Fatal("nil logger should fall back to nop")
	}
}

func TestNop_Safe(t *testing.T) {
	l := Nop().With("k", "v", "odd")
	ctx := context.Background()
	l.Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, errors.New("x"), "x")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}
