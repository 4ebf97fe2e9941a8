package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/nettrace"
	"github.com/unkn0wn-root/apidebug/internal/telemetry"
)

func TestExecuteTraceRecordsTimeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := NewClient().Execute(
		context.Background(),
		&debugreq.Request{Path: "/traced"},
		Options{BaseURL: srv.URL, Trace: true},
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	tl := resp.Timeline
	if tl == nil {
		t.Fatalf("expected timeline")
	}
	for _, kind := range []nettrace.PhaseKind{nettrace.PhaseConnect, nettrace.PhaseWait, nettrace.PhaseTransfer} {
		if _, ok := tl.Phase(kind); !ok {
			t.Fatalf("missing %s phase in %+v", kind, tl.Phases)
		}
	}
	if wait := tl.Sum(nettrace.PhaseWait); wait < 10*time.Millisecond {
		t.Fatalf("expected wait >= 10ms, got %s", wait)
	}
}

func TestExecuteWithoutTraceHasNoTimeline(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusOK, "ok")
	resp, err := NewClient().Execute(context.Background(), &debugreq.Request{Path: "/"}, Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Timeline != nil {
		t.Fatalf("expected no timeline, got %+v", resp.Timeline)
	}
}

func TestExecuteRecordsWarningsAndLogsOnSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := telemetry.New(telemetry.Config{ServiceName: "apidebug-test"}, telemetry.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	srv, _ := newCaptureServer(t, http.StatusOK, `{"logs":{"firstIndex":0,"lastIndex":0,"content":["x"]}}`)
	client := NewClient()
	client.SetTelemetry(inst)

	var inspected string
	_, err = client.Execute(context.Background(), &debugreq.Request{Path: "/api"}, Options{
		BaseURL:  srv.URL,
		Warnings: []string{"careful"},
		Inspect: func(body []byte) *debugreq.LogFragment {
			inspected = string(body)
			return &debugreq.LogFragment{FirstIndex: 0, LastIndex: 0, Content: []string{"x"}}
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if inspected == "" {
		t.Fatalf("expected Inspect to see the body")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	var warned, logged bool
	for _, ev := range spans[0].Events() {
		if ev.Name == "apidebug.request.warning" {
			warned = true
		}
	}
	for _, kv := range spans[0].Attributes() {
		if string(kv.Key) == "apidebug.logs.lines" && kv.Value.AsInt64() == 1 {
			logged = true
		}
	}
	if !warned || !logged {
		t.Fatalf("expected warning event and log attributes, warned=%v logged=%v", warned, logged)
	}
}
