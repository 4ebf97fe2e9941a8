package nettrace

import (
	"errors"
	"testing"
	"time"
)

func TestCollectorBuildsSortedTimeline(t *testing.T) {
	base := time.Unix(1700000000, 0)
	c := NewCollector()

	c.Begin(PhaseConnect, base.Add(2*time.Millisecond))
	c.Annotate(PhaseConnect, "127.0.0.1:8080", false)
	c.Begin(PhaseDNS, base)
	c.End(PhaseDNS, base.Add(2*time.Millisecond), nil)
	c.End(PhaseConnect, base.Add(5*time.Millisecond), nil)
	c.Begin(PhaseWait, base.Add(5*time.Millisecond))
	c.End(PhaseWait, base.Add(25*time.Millisecond), nil)

	tl := c.Timeline()
	if tl == nil {
		t.Fatalf("expected timeline")
	}
	if len(tl.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(tl.Phases))
	}
	if tl.Phases[0].Kind != PhaseDNS || tl.Phases[1].Kind != PhaseConnect || tl.Phases[2].Kind != PhaseWait {
		t.Fatalf("phases not sorted by start: %+v", tl.Phases)
	}
	if tl.Duration != 25*time.Millisecond {
		t.Fatalf("expected 25ms total, got %s", tl.Duration)
	}
	conn, ok := tl.Phase(PhaseConnect)
	if !ok || conn.Addr != "127.0.0.1:8080" || conn.Duration != 3*time.Millisecond {
		t.Fatalf("unexpected connect phase: %+v", conn)
	}
}

func TestCollectorCompleteMarksOpenPhases(t *testing.T) {
	base := time.Unix(1700000000, 0)
	c := NewCollector()
	c.Begin(PhaseTransfer, base)
	c.Fail(errors.New("unexpected EOF"))
	c.Fail(errors.New("second"))
	c.Complete(base.Add(time.Second))

	tl := c.Timeline()
	p, ok := tl.Phase(PhaseTransfer)
	if !ok || p.Err != "incomplete" || p.Duration != time.Second {
		t.Fatalf("unexpected transfer phase: %+v", p)
	}
	if tl.Err != "unexpected EOF" {
		t.Fatalf("expected first error to stick, got %q", tl.Err)
	}
}

func TestCollectorEmptyAndUnbegun(t *testing.T) {
	c := NewCollector()
	if c.Timeline() != nil {
		t.Fatalf("expected nil timeline when nothing was recorded")
	}

	ts := time.Unix(1700000000, 0)
	c.End(PhaseConnect, ts, errors.New("refused"))
	tl := c.Timeline()
	p, ok := tl.Phase(PhaseConnect)
	if !ok || p.Duration != 0 || p.Err != "refused" {
		t.Fatalf("unexpected phase: %+v", p)
	}
	if tl.Sum(PhaseDNS) != 0 {
		t.Fatalf("expected no dns time")
	}
}
