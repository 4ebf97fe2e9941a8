package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
	"github.com/unkn0wn-root/apidebug/internal/nettrace"
	"github.com/unkn0wn-root/apidebug/internal/telemetry"
)

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
	// Trace records per-phase network timings into Response.Timeline.
	Trace bool
	// Warnings are attached to the request span as events.
	Warnings []string
	// Inspect runs on the read body while the span is open. A returned
	// fragment is recorded on the span.
	Inspect func(body []byte) *debugreq.LogFragment
	// SessionID only labels the telemetry span; the header itself travels in the request rows.
	SessionID string
}

type Client struct {
	httpFactory func(Options) (*http.Client, error)
	telemetry   telemetry.Instrumenter
}

func (c *Client) resolveHTTPFactory() func(Options) (*http.Client, error) {
	if c == nil {
		return nil
	}
	if c.httpFactory != nil {
		return c.httpFactory
	}
	return c.buildHTTPClient
}

func NewClient() *Client {
	c := &Client{telemetry: telemetry.Noop()}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory allows callers to override how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit OpenTelemetry spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

type Response struct {
	Status         string
	StatusCode     int
	Proto          string
	Headers        http.Header
	ReqMethod      string
	RequestHeaders http.Header
	ReqHost        string
	ReqLen         int64
	Body           []byte
	Duration       time.Duration
	EffectiveURL   string
	Timeline       *nettrace.Timeline
	Request        *debugreq.Request
}

// Execute wraps the round trip in a telemetry span. The clock starts right before
// Do and stops once the body has been read.
func (c *Client) Execute(
	ctx context.Context,
	req *debugreq.Request,
	opts Options,
) (resp *Response, err error) {
	httpReq, err := c.prepareHTTPRequest(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	factory := c.resolveHTTPFactory()
	if factory == nil {
		return nil, errdef.New(errdef.CodeHTTP, "http client factory unavailable")
	}

	client, err := factory(opts)
	if err != nil {
		return nil, err
	}

	instrumenter := c.telemetry
	if instrumenter == nil {
		instrumenter = telemetry.Noop()
	}

	spanCtx, requestSpan := instrumenter.Start(httpReq.Context(), telemetry.RequestStart{
		Request:     req,
		HTTPRequest: httpReq,
		SessionID:   opts.SessionID,
	})
	httpReq = httpReq.WithContext(spanCtx)
	if requestSpan != nil {
		for _, w := range opts.Warnings {
			requestSpan.Warn(w)
		}
	}

	var (
		sizeBits  int64
		traceSess *traceSession
		timeline  *nettrace.Timeline
	)
	defer func() {
		if requestSpan == nil {
			return
		}
		if timeline != nil {
			requestSpan.RecordTrace(timeline)
		}
		result := telemetry.RequestResult{Err: err, SizeBits: sizeBits}
		if resp != nil {
			result.StatusCode = resp.StatusCode
			result.Duration = resp.Duration
		}
		requestSpan.End(result)
	}()

	if opts.Trace {
		traceSess = newTraceSession()
		httpReq = traceSess.bind(httpReq)
	}

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		duration := time.Since(start)
		if traceSess != nil {
			timeline = traceSess.finish(err)
		}
		return &Response{
				Request:      req,
				Duration:     duration,
				EffectiveURL: effURL(httpReq, nil),
				Timeline:     timeline,
			}, errdef.Wrap(
				errdef.CodeHTTP,
				err,
				"perform request",
			)
	}

	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeHTTP, closeErr, "close response body")
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if traceSess != nil {
		timeline = traceSess.finish(err)
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "read response body")
	}

	resp = respFromHTTP(httpReq, httpResp, req, body, duration)
	resp.Timeline = timeline
	if opts.Inspect != nil {
		if frag := opts.Inspect(body); frag != nil && requestSpan != nil {
			requestSpan.RecordLogs(frag)
		}
	}
	if httpResp.ContentLength > 0 {
		sizeBits = httpResp.ContentLength * 8
	}
	return resp, nil
}
