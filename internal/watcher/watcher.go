// Package watcher polls request files and reports content changes.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const DefaultInterval = 500 * time.Millisecond

type EventKind int

const (
	EventChanged EventKind = iota
	EventMissing
)

func (k EventKind) String() string {
	if k == EventMissing {
		return "missing"
	}
	return "changed"
}

// Fingerprint identifies one version of a file.
type Fingerprint struct {
	Mod  time.Time
	Size int64
	Hash uint64
}

type Event struct {
	Path string
	Kind EventKind
	Data []byte
}

// Watcher tracks a single file. A save that rewrites identical bytes is not a change.
type Watcher struct {
	path    string
	mu      sync.Mutex
	fp      Fingerprint
	missing bool
}

// New fingerprints path as it is now. A file that does not exist yet is
// reported as changed once it appears.
func New(path string) *Watcher {
	w := &Watcher{path: filepath.Clean(path)}
	info, data, err := read(w.path)
	if err != nil {
		w.missing = true
		return w
	}
	w.fp = fingerprint(info, data)
	return w
}

func (w *Watcher) Path() string { return w.path }

// Check stats the file once and reports whether it changed since the last check.
func (w *Watcher) Check() (Event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !w.missing {
			w.missing = true
			return Event{Path: w.path, Kind: EventMissing}, true
		}
		return Event{}, false
	}
	if !w.missing && info.ModTime().Equal(w.fp.Mod) && info.Size() == w.fp.Size {
		return Event{}, false
	}

	info, data, err := read(w.path)
	if err != nil {
		if !w.missing {
			w.missing = true
			return Event{Path: w.path, Kind: EventMissing}, true
		}
		return Event{}, false
	}
	next := fingerprint(info, data)
	wasMissing := w.missing
	prev := w.fp
	w.fp = next
	w.missing = false
	if !wasMissing && next.Hash == prev.Hash {
		return Event{}, false
	}
	return Event{Path: w.path, Kind: EventChanged, Data: data}, true
}

// Watch checks the file every interval until ctx ends. The returned channel is
// closed on exit. Events are dropped while the receiver is busy.
func (w *Watcher) Watch(ctx context.Context, interval time.Duration) <-chan Event {
	if interval <= 0 {
		interval = DefaultInterval
	}
	out := make(chan Event, 1)
	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				evt, ok := w.Check()
				if !ok {
					continue
				}
				select {
				case out <- evt:
				default:
				}
			}
		}
	}()
	return out
}

func read(path string) (fs.FileInfo, []byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return info, data, nil
}

func fingerprint(info fs.FileInfo, data []byte) Fingerprint {
	return Fingerprint{
		Mod:  info.ModTime(),
		Size: int64(len(data)),
		Hash: xxhash.Sum64(data),
	}
}
