// Package nettrace records the network phases of a single round trip.
package nettrace

import (
	"sort"
	"time"
)

type PhaseKind string

const (
	PhaseDNS      PhaseKind = "dns"
	PhaseConnect  PhaseKind = "connect"
	PhaseTLS      PhaseKind = "tls"
	PhaseWait     PhaseKind = "wait"
	PhaseTransfer PhaseKind = "transfer"
)

// Order is the order phases are listed in when rendered.
var Order = []PhaseKind{PhaseDNS, PhaseConnect, PhaseTLS, PhaseWait, PhaseTransfer}

type Phase struct {
	Kind     PhaseKind
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Addr     string
	Reused   bool
	Err      string
}

type Timeline struct {
	Started   time.Time
	Completed time.Time
	Duration  time.Duration
	Err       string
	Phases    []Phase
}

// Phase returns the first recorded phase of kind.
func (tl *Timeline) Phase(kind PhaseKind) (Phase, bool) {
	if tl == nil {
		return Phase{}, false
	}
	for _, p := range tl.Phases {
		if p.Kind == kind {
			return p, true
		}
	}
	return Phase{}, false
}

// Sum adds up the durations of every phase of kind.
func (tl *Timeline) Sum(kind PhaseKind) time.Duration {
	if tl == nil {
		return 0
	}
	var total time.Duration
	for _, p := range tl.Phases {
		if p.Kind == kind {
			total += p.Duration
		}
	}
	return total
}

func sortPhases(phases []Phase) {
	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].Start.Equal(phases[j].Start) {
			return phases[i].End.Before(phases[j].End)
		}
		return phases[i].Start.Before(phases[j].Start)
	})
}
