package stream

import (
	"sync/atomic"
	"time"
)

// Kind names the log channel a session is fed from.
type Kind int

const (
	KindPoll Kind = iota
	KindPush
)

func (k Kind) String() string {
	switch k {
	case KindPoll:
		return "poll"
	case KindPush:
		return "push"
	}
	return "stream"
}

type Direction int

const (
	DirNA Direction = iota
	DirSend
	DirReceive
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Event is one raw message received on a log channel. Payload is not decoded.
type Event struct {
	Kind      Kind
	Direction Direction
	Timestamp time.Time
	Sequence  uint64

	Metadata map[string]string
	Payload  []byte
}

var seqCounter uint64

func nextSequence() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}
