package stream

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/util"
)

type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
	DropListener
)

func (p DropPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropListener:
		return "drop-listener"
	}
	return "drop-oldest"
}

type Config struct {
	BufferSize     int
	ListenerBuffer int
	DropPolicy     DropPolicy
}

func defaultConfig(cfg Config) Config {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.ListenerBuffer <= 0 {
		cfg.ListenerBuffer = 64
	}

	switch cfg.DropPolicy {
	case DropNewest, DropOldest, DropListener:
	default:
		cfg.DropPolicy = DropOldest
	}
	return cfg
}

// Session is one log channel connection. Transports publish raw events; any
// number of listeners receive them. The session keeps the most recent events so
// late subscribers can replay them.
type Session struct {
	id     string
	kind   Kind
	source string

	ctx    context.Context
	cancel context.CancelFunc

	cfg Config

	mu        sync.RWMutex
	state     State
	err       error
	events    *util.Ring[*Event]
	listeners map[int]*listener
	nextLID   int

	done     chan struct{}
	doneOnce sync.Once

	stats Stats
}

type Stats struct {
	StartedAt   time.Time
	EndedAt     time.Time
	LastEventAt time.Time
	EventsTotal uint64
	BytesTotal  uint64
	Dropped     uint64
}

type listener struct {
	ch        chan *Event
	dropCnt   uint64
	policy    DropPolicy
	closed    int32
	closeOnce sync.Once
}

type Listener struct {
	C        <-chan *Event
	Cancel   func()
	Snapshot Snapshot
}

type Snapshot struct {
	Events []*Event
	State  State
	Err    error
}

// Summary is a read-only view of a session for status output.
type Summary struct {
	ID     string
	Kind   Kind
	Source string
	State  State
	Err    error
	Stats  Stats
}

var sessionCounter uint64

// NewSession creates a session in the connecting state. source is the channel
// address (poll URL or websocket URL) and is only informational.
func NewSession(parent context.Context, kind Kind, source string, cfg Config) *Session {
	cfg = defaultConfig(cfg)
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        buildSessionID(kind),
		kind:      kind,
		source:    source,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		state:     StateConnecting,
		events:    util.NewRing[*Event](cfg.BufferSize),
		listeners: make(map[int]*listener),
		done:      make(chan struct{}),
		stats: Stats{
			StartedAt: time.Now(),
		},
	}
}

func buildSessionID(kind Kind) string {
	seq := atomic.AddUint64(&sessionCounter, 1)
	return kind.String() + "-" + time.Now().UTC().Format("20060102T150405.000000Z") + "-" +
		strconv.FormatUint(seq, 10)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Kind() Kind { return s.kind }

func (s *Session) Source() string { return s.source }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Cancel() { s.cancel() }

func (s *Session) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err
}

func (s *Session) StatsSnapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		ID:     s.id,
		Kind:   s.kind,
		Source: s.source,
		State:  s.state,
		Err:    s.err,
		Stats:  s.stats,
	}
}

func (s *Session) EventsSnapshot() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Snapshot()
}

// Subscribe registers a listener. The returned snapshot holds the events
// published before the call; C receives everything after it.
func (s *Session) Subscribe() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextLID
	s.nextLID++
	l := &listener{
		ch:     make(chan *Event, s.cfg.ListenerBuffer),
		policy: s.cfg.DropPolicy,
	}

	snapshot := Snapshot{
		Events: s.events.Snapshot(),
		State:  s.state,
		Err:    s.err,
	}
	if s.state == StateClosed || s.state == StateFailed {
		l.close()
	} else {
		s.listeners[id] = l
	}

	return Listener{
		C: l.ch,
		Cancel: func() {
			s.removeListener(id)
		},
		Snapshot: snapshot,
	}
}

func (s *Session) removeListener(id int) {
	s.mu.Lock()
	l, ok := s.listeners[id]
	if ok {
		delete(s.listeners, id)
	}
	s.mu.Unlock()
	if ok {
		l.close()
	}
}

func (l *listener) close() {
	l.closeOnce.Do(func() {
		atomic.StoreInt32(&l.closed, 1)
		close(l.ch)
	})
}

// PublishPayload wraps payload in a received event of the session's kind.
func (s *Session) PublishPayload(payload []byte, meta map[string]string) {
	s.Publish(&Event{
		Kind:      s.kind,
		Direction: DirReceive,
		Payload:   payload,
		Metadata:  meta,
	})
}

func (s *Session) Publish(evt *Event) {
	if evt == nil {
		return
	}
	evt.Sequence = nextSequence()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.events.Push(evt)
	s.stats.EventsTotal++
	s.stats.BytesTotal += uint64(len(evt.Payload))
	s.stats.LastEventAt = evt.Timestamp
	listeners := make([]*listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	dropped := 0
	for _, l := range listeners {
		if !l.emit(evt) {
			dropped++
		}
	}
	if dropped > 0 {
		s.mu.Lock()
		s.stats.Dropped += uint64(dropped)
		s.mu.Unlock()
	}
}

func (l *listener) emit(evt *Event) bool {
	if atomic.LoadInt32(&l.closed) == 1 {
		return false
	}
	defer func() {
		// emit can race with close; a send on the closed channel counts as a drop.
		if r := recover(); r != nil {
			atomic.StoreInt32(&l.closed, 1)
			l.dropCnt++
		}
	}()

	select {
	case l.ch <- evt:
		return true
	default:
	}

	switch l.policy {
	case DropNewest:
		l.dropCnt++
		return false
	case DropListener:
		l.close()
		return false
	}

	select {
	case <-l.ch:
	default:
	}
	select {
	case l.ch <- evt:
		return true
	default:
		l.dropCnt++
		return false
	}
}

func (s *Session) MarkOpen() {
	s.setState(StateOpen, nil)
}

func (s *Session) MarkClosing() {
	s.setState(StateClosing, nil)
}

// Close ends the session. A non-nil err marks it failed. Listener channels are
// closed so range loops over them terminate.
func (s *Session) Close(err error) {
	if err != nil {
		s.setState(StateFailed, err)
	} else {
		s.setState(StateClosed, nil)
	}

	s.cancel()
	s.mu.Lock()
	if s.stats.EndedAt.IsZero() {
		s.stats.EndedAt = time.Now()
	}

	listeners := make([]*listener, 0, len(s.listeners))
	for id, l := range s.listeners {
		listeners = append(listeners, l)
		delete(s.listeners, id)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l.close()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.err = err
	} else if state == StateClosed {
		s.err = nil
	}
	s.mu.Unlock()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
