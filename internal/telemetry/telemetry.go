package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

var (
	tracerName  = "github.com/unkn0wn-root/apidebug/internal/telemetry"
	httpHostKey = attribute.Key("http.host")
)

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

type RequestStart struct {
	Request     *debugreq.Request
	HTTPRequest *http.Request
	SessionID   string
}

type RequestResult struct {
	Err        error
	StatusCode int
	Duration   time.Duration
	SizeBits   int64
}

type RequestSpan interface {
	Warn(msg string)
	RecordLogs(frag *debugreq.LogFragment)
	RecordTrace(tl *nettrace.Timeline)
	End(result RequestResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	if info.HTTPRequest == nil {
		return ctx, noopSpan{}
	}

	attrs := buildSpanAttributes(info)
	spanName := spanNameFor(info)
	ctx, span := m.tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &requestSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type requestSpan struct {
	span trace.Span
}

func (rs *requestSpan) Warn(msg string) {
	if rs == nil || rs.span == nil || strings.TrimSpace(msg) == "" {
		return
	}
	rs.span.AddEvent(
		"apidebug.request.warning",
		trace.WithAttributes(attribute.String("apidebug.warning", msg)),
	)
}

func (rs *requestSpan) RecordLogs(frag *debugreq.LogFragment) {
	if rs == nil || rs.span == nil || frag == nil {
		return
	}
	rs.span.SetAttributes(
		attribute.Int64("apidebug.logs.first_index", frag.FirstIndex),
		attribute.Int64("apidebug.logs.last_index", frag.LastIndex),
		attribute.Int("apidebug.logs.lines", len(frag.Content)),
	)
}

// RecordTrace adds one span event per network phase.
func (rs *requestSpan) RecordTrace(tl *nettrace.Timeline) {
	if rs == nil || rs.span == nil || tl == nil {
		return
	}
	rs.span.SetAttributes(attribute.Int64("apidebug.trace.duration_ms", tl.Duration.Milliseconds()))
	if strings.TrimSpace(tl.Err) != "" {
		rs.span.AddEvent(
			"apidebug.trace.error",
			trace.WithAttributes(attribute.String("apidebug.error", tl.Err)),
		)
	}
	for _, phase := range tl.Phases {
		attrs := []attribute.KeyValue{
			attribute.String("apidebug.trace.phase", string(phase.Kind)),
			attribute.Int64("apidebug.trace.phase_duration_ms", phase.Duration.Milliseconds()),
		}
		if phase.Addr != "" {
			attrs = append(attrs, attribute.String("apidebug.trace.addr", phase.Addr))
		}
		if phase.Reused {
			attrs = append(attrs, attribute.Bool("apidebug.trace.reused", true))
		}
		if phase.Err != "" {
			attrs = append(attrs, attribute.String("apidebug.trace.phase_error", phase.Err))
		}
		opts := []trace.EventOption{trace.WithAttributes(attrs...)}
		if !phase.End.IsZero() {
			opts = append(opts, trace.WithTimestamp(phase.End))
		}
		rs.span.AddEvent("apidebug.trace.phase", opts...)
	}
}

func (rs *requestSpan) End(result RequestResult) {
	if rs == nil || rs.span == nil {
		return
	}

	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	if result.Duration > 0 {
		rs.span.SetAttributes(
			attribute.Int64("apidebug.request.duration_ms", result.Duration.Milliseconds()),
		)
	}
	if result.SizeBits > 0 {
		rs.span.SetAttributes(attribute.Int64("apidebug.response.size_bits", result.SizeBits))
	}

	statusCode := codes.Ok
	statusMsg := "OK"
	switch {
	case result.Err != nil:
		rs.span.RecordError(result.Err)
		statusCode = codes.Error
		statusMsg = result.Err.Error()
	case result.StatusCode >= 400:
		statusCode = codes.Error
		statusMsg = fmt.Sprintf("HTTP %d", result.StatusCode)
	}

	rs.span.SetStatus(statusCode, statusMsg)
	rs.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) Warn(string) {}

func (noopSpan) RecordLogs(*debugreq.LogFragment) {}

func (noopSpan) RecordTrace(*nettrace.Timeline) {}

func (noopSpan) End(RequestResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info RequestStart) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}

	req := info.HTTPRequest
	if req.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(req.Method))
	} else if info.Request != nil {
		attrs = append(attrs, semconv.HTTPMethodKey.String(info.Request.NormalizedMethod()))
	}

	if req.URL != nil {
		if scheme := req.URL.Scheme; scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(scheme))
		}
		if host := req.URL.Host; host != "" {
			attrs = append(attrs, httpHostKey.String(host))
		}
		if target := req.URL.RequestURI(); target != "" {
			attrs = append(attrs, semconv.HTTPTargetKey.String(target))
		}
		if full := req.URL.String(); full != "" {
			attrs = append(attrs, semconv.HTTPURLKey.String(full))
		}
	}

	if id := strings.TrimSpace(info.SessionID); id != "" {
		attrs = append(attrs, attribute.String("apidebug.session.id", id))
	}
	if info.Request != nil {
		attrs = append(
			attrs,
			attribute.String("apidebug.request.body_type", string(info.Request.EffectiveBodyType())),
		)
		if path := strings.TrimSpace(info.Request.Path); path != "" {
			attrs = append(attrs, attribute.String("apidebug.request.path", path))
		}
	}

	return attrs
}

func spanNameFor(info RequestStart) string {
	if info.HTTPRequest != nil && info.HTTPRequest.Method != "" {
		if info.HTTPRequest.URL != nil && info.HTTPRequest.URL.Path != "" {
			return fmt.Sprintf("%s %s", info.HTTPRequest.Method, info.HTTPRequest.URL.Path)
		}
		return info.HTTPRequest.Method
	}
	return "debug.request"
}
