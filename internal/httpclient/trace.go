package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

// traceSession maps httptrace callbacks onto collector phases.
type traceSession struct {
	collector *nettrace.Collector
	mu        sync.Mutex
	waiting   bool
	receiving bool
}

func newTraceSession() *traceSession {
	return &traceSession{collector: nettrace.NewCollector()}
}

func (s *traceSession) bind(req *http.Request) *http.Request {
	ct := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			s.collector.Begin(nettrace.PhaseDNS, time.Now())
			s.collector.Annotate(nettrace.PhaseDNS, info.Host, false)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if len(info.Addrs) > 0 {
				s.collector.Annotate(nettrace.PhaseDNS, info.Addrs[0].String(), false)
			}
			s.collector.End(nettrace.PhaseDNS, time.Now(), info.Err)
			s.collector.Fail(info.Err)
		},
		ConnectStart: func(_, addr string) {
			s.collector.Begin(nettrace.PhaseConnect, time.Now())
			s.collector.Annotate(nettrace.PhaseConnect, addr, false)
		},
		ConnectDone: func(_, _ string, err error) {
			s.collector.End(nettrace.PhaseConnect, time.Now(), err)
			s.collector.Fail(err)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			if !info.Reused {
				return
			}
			now := time.Now()
			s.collector.Begin(nettrace.PhaseConnect, now)
			if info.Conn != nil {
				s.collector.Annotate(nettrace.PhaseConnect, info.Conn.RemoteAddr().String(), true)
			} else {
				s.collector.Annotate(nettrace.PhaseConnect, "", true)
			}
			s.collector.End(nettrace.PhaseConnect, now, nil)
		},
		TLSHandshakeStart: func() {
			s.collector.Begin(nettrace.PhaseTLS, time.Now())
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			s.collector.End(nettrace.PhaseTLS, time.Now(), err)
			s.collector.Fail(err)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				s.collector.Fail(info.Err)
				return
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.waiting {
				s.waiting = true
				s.collector.Begin(nettrace.PhaseWait, time.Now())
			}
		},
		GotFirstResponseByte: func() {
			now := time.Now()
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.waiting {
				s.waiting = false
				s.collector.End(nettrace.PhaseWait, now, nil)
			}
			if !s.receiving {
				s.receiving = true
				s.collector.Begin(nettrace.PhaseTransfer, now)
			}
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), ct))
}

// finish closes the transfer phase once the body is read and returns the timeline.
func (s *traceSession) finish(err error) *nettrace.Timeline {
	now := time.Now()
	s.mu.Lock()
	if s.receiving {
		s.receiving = false
		s.collector.End(nettrace.PhaseTransfer, now, err)
	}
	s.mu.Unlock()
	s.collector.Fail(err)
	s.collector.Complete(now)
	return s.collector.Timeline()
}
