// Package logview keeps a bounded, styled view of a debug session's server
// output. Lines arrive as raw text or as index-addressed fragments of the
// server-side log ring.
package logview

import (
	"strings"
	"sync"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/logger"
	"github.com/unkn0wn-root/apidebug/internal/sgr"
	"github.com/unkn0wn-root/apidebug/internal/util"
)

const (
	DefaultMaxLines = 1000

	LossNotice      = "...server output too fast, some log lines were lost..."
	ExceptionHeader = "server exception:"
)

type State int

const (
	StateEmpty State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "empty"
}

type Options struct {
	MaxLines   int
	Linkify    bool
	UseClasses bool
	Logger     logger.Logger
}

type Line struct {
	Number int64
	Spans  []sgr.Span
}

func (l Line) Text() string { return sgr.PlainText(l.Spans) }

type Engine struct {
	mu       sync.Mutex
	opts     Options
	lines    *util.Ring[Line]
	counter  int64
	lastSeen int64
	log      logger.Logger
}

func New(opts Options) *Engine {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	return &Engine{
		opts:     opts,
		lines:    util.NewRing[Line](opts.MaxLines),
		lastSeen: -1,
		log:      logger.OrNop(opts.Logger),
	}
}

func (e *Engine) MaxLines() int { return e.opts.MaxLines }

// Clear drops every line. The next line is numbered resetIndex (0 when omitted)
// and no fragment counts as seen.
func (e *Engine) Clear(resetIndex ...int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines.Reset()
	e.counter = 0
	if len(resetIndex) > 0 {
		e.counter = resetIndex[0]
	}
	e.lastSeen = -1
}

// AppendText splits raw on newlines and appends one line per segment. A final
// newline does not produce an empty trailing line.
func (e *Engine) AppendText(raw string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appendText(raw)
}

func (e *Engine) appendText(raw string) {
	segments := strings.Split(raw, "\n")
	if len(segments) > 1 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	for _, seg := range segments {
		e.appendLine(seg)
	}
}

func (e *Engine) appendLine(seg string) {
	line := Line{
		Number: e.counter,
		Spans: sgr.Decode(seg, sgr.Options{
			Linkify:    e.opts.Linkify,
			UseClasses: e.opts.UseClasses,
		}),
	}
	e.counter++
	e.lines.Push(line)
}

// Reconcile merges a fragment of the server log ring. It returns false when
// the fragment is stale, i.e. nothing past the last seen index.
func (e *Engine) Reconcile(frag debugreq.LogFragment) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if frag.LastIndex <= e.lastSeen {
		e.log.Debug("stale log fragment ignored",
			"first", frag.FirstIndex, "last", frag.LastIndex, "seen", e.lastSeen)
		return false
	}

	content := frag.Content
	switch {
	case e.lastSeen >= 0 && frag.FirstIndex > e.lastSeen+1:
		e.log.Warn("log gap detected",
			"expected", e.lastSeen+1, "first", frag.FirstIndex)
		e.appendLine(LossNotice)
	case e.lastSeen >= 0 && frag.FirstIndex <= e.lastSeen && frag.Consistent():
		skip := e.lastSeen - frag.FirstIndex + 1
		content = content[skip:]
	}

	for _, c := range content {
		e.appendText(c)
	}
	e.lastSeen = frag.LastIndex
	return true
}

// AppendError renders a server-side exception as ordinary lines.
func (e *Engine) AppendError(stackTrace string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appendText(ExceptionHeader)
	e.appendText(stackTrace)
}

// Lines returns a copy of the retained lines, oldest first.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Snapshot()
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Len()
}

func (e *Engine) LastSeenIndex() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// Counter is the number the next appended line will get.
func (e *Engine) Counter() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counter
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lines.Len() == 0 {
		return StateEmpty
	}
	return StateStreaming
}
