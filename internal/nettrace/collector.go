package nettrace

import (
	"sync"
	"time"
)

type open struct {
	start  time.Time
	addr   string
	reused bool
}

// Collector is fed by httptrace callbacks, which may run on several goroutines.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	finished time.Time
	err      string
	phases   []Phase
	active   map[PhaseKind]*open
}

func NewCollector() *Collector {
	return &Collector{active: make(map[PhaseKind]*open)}
}

// Begin opens a phase at ts. A zero ts means now.
func (c *Collector) Begin(kind PhaseKind, ts time.Time) {
	if kind == "" {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() || ts.Before(c.started) {
		c.started = ts
	}
	c.active[kind] = &open{start: ts}
}

// Annotate sets the address and reuse flag of an open phase.
func (c *Collector) Annotate(kind PhaseKind, addr string, reused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o := c.active[kind]; o != nil {
		if addr != "" {
			o.addr = addr
		}
		o.reused = o.reused || reused
	}
}

// End closes a phase. Ending a phase that was never begun records it with zero length.
func (c *Collector) End(kind PhaseKind, ts time.Time, err error) {
	if kind == "" {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.active[kind]
	if !ok {
		o = &open{start: ts}
		if c.started.IsZero() || ts.Before(c.started) {
			c.started = ts
		}
	}
	if ts.Before(o.start) {
		ts = o.start
	}
	p := Phase{
		Kind:     kind,
		Start:    o.start,
		End:      ts,
		Duration: ts.Sub(o.start),
		Addr:     o.addr,
		Reused:   o.reused,
	}
	if err != nil {
		p.Err = err.Error()
	}
	c.phases = append(c.phases, p)
	delete(c.active, kind)
	if ts.After(c.finished) {
		c.finished = ts
	}
}

// Fail records the first error of the round trip.
func (c *Collector) Fail(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == "" {
		c.err = err.Error()
	}
	c.mu.Unlock()
}

// Complete closes every open phase at ts and marks them incomplete.
func (c *Collector) Complete(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, o := range c.active {
		end := ts
		if end.Before(o.start) {
			end = o.start
		}
		c.phases = append(c.phases, Phase{
			Kind:     kind,
			Start:    o.start,
			End:      end,
			Duration: end.Sub(o.start),
			Addr:     o.addr,
			Reused:   o.reused,
			Err:      "incomplete",
		})
	}
	c.active = make(map[PhaseKind]*open)
	if ts.After(c.finished) {
		c.finished = ts
	}
}

// Timeline snapshots the recorded phases sorted by start time. It returns nil
// when nothing was recorded.
func (c *Collector) Timeline() *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.phases) == 0 && c.started.IsZero() {
		return nil
	}
	phases := make([]Phase, len(c.phases))
	copy(phases, c.phases)
	sortPhases(phases)

	tl := &Timeline{
		Started:   c.started,
		Completed: c.finished,
		Err:       c.err,
		Phases:    phases,
	}
	if !tl.Completed.IsZero() && tl.Completed.After(tl.Started) {
		tl.Duration = tl.Completed.Sub(tl.Started)
	}
	return tl
}
