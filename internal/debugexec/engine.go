package debugexec

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/config"
	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/httpclient"
	"github.com/unkn0wn-root/apidebug/internal/logger"
)

const WarnGetWithBody = "GET request carries a JSON body"

// Doer performs the wire round trip. *httpclient.Client satisfies it.
type Doer interface {
	Execute(ctx context.Context, req *debugreq.Request, opts httpclient.Options) (*httpclient.Response, error)
}

type Options struct {
	BaseURL         string
	DebugHeader     string
	Timeout         time.Duration
	FollowRedirects bool
	Insecure        bool
	Proxy           string
	// Trace collects per-phase network timings.
	Trace bool
}

// OptionsFromSettings maps persisted settings onto engine options.
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		BaseURL:         s.BaseURL,
		DebugHeader:     s.DebugHeader,
		Timeout:         s.TimeoutDuration(),
		FollowRedirects: s.FollowRedirects,
		Insecure:        s.Insecure,
		Proxy:           s.Proxy,
	}
}

type Engine struct {
	client  Doer
	log     logger.Logger
	opts    Options
	counter atomic.Uint64
	now     func() time.Time
}

func New(client Doer, log logger.Logger, opts Options) *Engine {
	if client == nil {
		client = httpclient.NewClient()
	}
	if strings.TrimSpace(opts.DebugHeader) == "" {
		opts.DebugHeader = config.DefaultDebugHeader
	}
	return &Engine{
		client: client,
		log:    logger.OrNop(log),
		opts:   opts,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for session ids.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.now = now
}

func (e *Engine) HeaderName() string { return e.opts.DebugHeader }

// NextSessionID returns debug_<epochMillis>_<n>; n grows by one per call.
func (e *Engine) NextSessionID() string {
	n := e.counter.Add(1)
	return fmt.Sprintf("debug_%d_%d", e.now().UnixMilli(), n)
}

// Execute sends req and returns the normalized response. The caller's request is
// never modified. Transport failures are returned as errors; any HTTP status is data.
func (e *Engine) Execute(ctx context.Context, req debugreq.Request) (*debugreq.Response, error) {
	wire := req.Clone()
	var warnings []string

	if wire.NormalizedMethod() == http.MethodGet && wire.HasJSONBody() {
		e.log.Warn(WarnGetWithBody, "path", wire.Path)
		warnings = append(warnings, WarnGetWithBody)
	}

	sessionID, supplied := e.sessionFor(wire)
	if !supplied {
		sessionID = e.NextSessionID()
		wire.Headers = append(wire.Headers, debugreq.RequestItem{
			Key:      e.opts.DebugHeader,
			Value:    sessionID,
			Selected: true,
		})
	}

	log := e.log
	if zl, ok := log.(*logger.ZeroLogger); ok {
		log = zl.With("session", sessionID)
	}
	log.Debug("dispatching debug request", "method", wire.NormalizedMethod(), "path", wire.Path)

	var (
		body       string
		frag       *debugreq.LogFragment
		normalized bool
	)
	resp, err := e.client.Execute(ctx, &wire, httpclient.Options{
		BaseURL:            e.opts.BaseURL,
		Timeout:            e.opts.Timeout,
		FollowRedirects:    e.opts.FollowRedirects,
		InsecureSkipVerify: e.opts.Insecure,
		ProxyURL:           e.opts.Proxy,
		Trace:              e.opts.Trace,
		Warnings:           warnings,
		SessionID:          sessionID,
		Inspect: func(raw []byte) *debugreq.LogFragment {
			body, frag = NormalizeBodyWith(raw, log)
			normalized = true
			return frag
		},
	})
	if err != nil {
		log.Err(err, "debug request failed", "path", wire.Path)
		return nil, err
	}

	out := &debugreq.Response{
		Headers:    responseHeaders(resp.Headers),
		Status:     resp.StatusCode,
		StatusText: resp.StatusText(),
		SessionID:  sessionID,
		URL:        resp.EffectiveURL,
		Warnings:   warnings,
	}
	elapsed := resp.Duration.Milliseconds()
	out.Time = &elapsed
	if size, ok := sizeBits(resp.Headers); ok {
		out.Size = &size
	}

	if !normalized {
		body, frag = NormalizeBodyWith(resp.Body, log)
	}
	out.Body = body
	out.Logs = frag
	out.Timeline = resp.Timeline

	log.Info(
		"debug request completed",
		"status", out.Status,
		"duration_ms", elapsed,
		"logs", frag != nil,
	)
	return out, nil
}

// sessionFor returns the value of a caller supplied correlation header, if any.
func (e *Engine) sessionFor(req debugreq.Request) (string, bool) {
	for _, item := range req.Headers {
		if item.Selected && strings.EqualFold(strings.TrimSpace(item.Key), e.opts.DebugHeader) {
			return item.Value, true
		}
	}
	return "", false
}

func sizeBits(h http.Header) (int64, bool) {
	raw := strings.TrimSpace(h.Get("Content-Length"))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n * 8, true
}

// responseHeaders flattens h into sorted lower-case rows, one per value.
func responseHeaders(h http.Header) []debugreq.RequestItem {
	if len(h) == 0 {
		return []debugreq.RequestItem{}
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})

	out := make([]debugreq.RequestItem, 0, len(keys))
	for _, k := range keys {
		name := strings.ToLower(k)
		for _, v := range h[k] {
			out = append(out, debugreq.RequestItem{Key: name, Value: v, Selected: true})
		}
	}
	return out
}
