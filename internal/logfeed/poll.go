package logfeed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/apidebug/internal/errdef"
	"github.com/unkn0wn-root/apidebug/internal/logger"
	"github.com/unkn0wn-root/apidebug/internal/stream"
)

const DefaultPollInterval = time.Second

// Poller fetches URL at most once per Interval and publishes every non-empty
// 2xx body into a session. Failed polls are logged and retried on the next tick.
type Poller struct {
	URL      string
	Interval time.Duration
	Header   http.Header
	Client   *http.Client
	Log      logger.Logger
}

// Run blocks until ctx or the session is cancelled. The session is closed on return.
func (p *Poller) Run(ctx context.Context, session *stream.Session) error {
	if p.URL == "" {
		err := errdef.New(errdef.CodeStream, "poll url is empty")
		session.Close(err)
		return err
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := logger.OrNop(p.Log)
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-session.Context().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	session.MarkOpen()
	log.Info("log poller started", "url", p.URL, "interval", interval.String())
	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		body, status, err := p.fetch(ctx, client)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Err(err, "log poll failed", "url", p.URL)
			continue
		}
		if status < 200 || status > 299 {
			log.Warn("log poll returned non-2xx", "url", p.URL, "status", status)
			continue
		}
		if len(body) == 0 {
			continue
		}
		session.PublishPayload(body, map[string]string{"status": strconv.Itoa(status)})
	}

	session.MarkClosing()
	session.Close(nil)
	log.Info("log poller stopped", "url", p.URL)
	return nil
}

func (p *Poller) fetch(ctx context.Context, client *http.Client) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, 0, errdef.Wrap(errdef.CodeStream, err, "build poll request")
	}
	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errdef.Wrap(errdef.CodeStream, err, "poll %s", p.URL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, resp.StatusCode, errdef.Wrap(errdef.CodeStream, err, "read poll body")
	}
	return body, resp.StatusCode, nil
}
