package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

func newRecorded(t *testing.T) (Instrumenter, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(
		Config{ServiceName: "apidebug-test", Version: "test"},
		WithSpanProcessor(recorder),
	)
	if err != nil {
		t.Fatalf("New instrumenter: %v", err)
	}
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background())
	})
	return inst, recorder
}

func TestInstrumenterRecordsDebugExecution(t *testing.T) {
	inst, recorder := newRecorded(t)

	req := &debugreq.Request{Method: "GET", Path: "/api/health", BodyType: debugreq.BodyJSON}
	httpReq, err := http.NewRequestWithContext(
		context.Background(),
		"GET",
		"https://example.com/api/health",
		nil,
	)
	if err != nil {
		t.Fatalf("build http request: %v", err)
	}

	ctx, span := inst.Start(
		context.Background(),
		RequestStart{Request: req, HTTPRequest: httpReq, SessionID: "debug_1_1"},
	)
	if ctx == nil || span == nil {
		t.Fatalf("expected span to be created")
	}

	span.Warn("GET request carries a JSON body")
	span.RecordLogs(&debugreq.LogFragment{FirstIndex: 4, LastIndex: 5, Content: []string{"a", "b"}})
	span.End(RequestResult{StatusCode: 200, Duration: 180 * time.Millisecond, SizeBits: 64})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	ro := spans[0]
	if got := ro.Name(); got != "GET /api/health" {
		t.Fatalf("unexpected span name %q", got)
	}
	assertAttribute(t, ro, "http.method", "GET")
	assertAttribute(t, ro, "apidebug.session.id", "debug_1_1")
	assertAttribute(t, ro, "apidebug.request.body_type", "JsonBody")
	assertAttribute(t, ro, "apidebug.request.duration_ms", int64(180))
	assertAttribute(t, ro, "apidebug.response.size_bits", int64(64))
	assertAttribute(t, ro, "apidebug.logs.last_index", int64(5))
	if ro.Status().Code != codes.Ok {
		t.Fatalf("expected span status OK, got %v", ro.Status().Code)
	}

	var warnings int
	for _, ev := range ro.Events() {
		if ev.Name == "apidebug.request.warning" {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("expected one warning event, got %d", warnings)
	}
}

func TestSpanStatusForFailures(t *testing.T) {
	inst, recorder := newRecorded(t)
	httpReq, _ := http.NewRequest("POST", "https://example.com/x", nil)

	_, span := inst.Start(context.Background(), RequestStart{HTTPRequest: httpReq})
	span.End(RequestResult{StatusCode: 503})
	_, span = inst.Start(context.Background(), RequestStart{HTTPRequest: httpReq})
	span.End(RequestResult{Err: errors.New("dial tcp: refused")})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, ro := range spans {
		if ro.Status().Code != codes.Error {
			t.Fatalf("expected error status, got %v", ro.Status())
		}
	}
	if spans[0].Status().Description != "HTTP 503" {
		t.Fatalf("unexpected description %q", spans[0].Status().Description)
	}
}

func TestNoopWhenDisabled(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	gotCtx, span := inst.Start(ctx, RequestStart{})
	if gotCtx != ctx {
		t.Fatalf("expected context passthrough")
	}
	span.Warn("ignored")
	span.RecordLogs(nil)
	span.End(RequestResult{})
	if err := inst.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func assertAttribute(t *testing.T, span sdktrace.ReadOnlySpan, key string, want interface{}) {
	t.Helper()
	attrs := span.Attributes()
	for _, attr := range attrs {
		if string(attr.Key) != key {
			continue
		}
		switch v := want.(type) {
		case string:
			if attr.Value.AsString() == v {
				return
			}
		case bool:
			if attr.Value.AsBool() == v {
				return
			}
		case int64:
			if attr.Value.AsInt64() == v {
				return
			}
		}
		t.Fatalf("attribute %s mismatch: got %v, want %v", key, attr.Value, want)
	}
	t.Fatalf("attribute %s not found", key)
}

func TestRecordTraceAddsPhaseEvents(t *testing.T) {
	inst, recorder := newRecorded(t)
	httpReq, err := http.NewRequest("GET", "http://localhost/api/slow", nil)
	if err != nil {
		t.Fatalf("build http request: %v", err)
	}
	_, span := inst.Start(context.Background(), RequestStart{HTTPRequest: httpReq})

	base := time.Unix(1700000000, 0)
	span.RecordTrace(&nettrace.Timeline{
		Duration: 40 * time.Millisecond,
		Phases: []nettrace.Phase{
			{Kind: nettrace.PhaseConnect, End: base, Duration: 5 * time.Millisecond, Addr: "127.0.0.1:80"},
			{Kind: nettrace.PhaseWait, End: base, Duration: 30 * time.Millisecond},
		},
	})
	span.End(RequestResult{StatusCode: 200})

	ro := recorder.Ended()[0]
	assertAttribute(t, ro, "apidebug.trace.duration_ms", int64(40))
	var phases []string
	for _, ev := range ro.Events() {
		if ev.Name != "apidebug.trace.phase" {
			continue
		}
		for _, kv := range ev.Attributes {
			if string(kv.Key) == "apidebug.trace.phase" {
				phases = append(phases, kv.Value.AsString())
			}
		}
	}
	if len(phases) != 2 || phases[0] != "connect" || phases[1] != "wait" {
		t.Fatalf("unexpected phase events %v", phases)
	}
}
