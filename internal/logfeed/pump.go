package logfeed

import (
	"context"

	"github.com/unkn0wn-root/apidebug/internal/logger"
	"github.com/unkn0wn-root/apidebug/internal/logview"
	"github.com/unkn0wn-root/apidebug/internal/stream"
)

// Pump drains a session listener into view: replayed snapshot events first,
// then live events until the channel closes or ctx ends. onUpdate, if set, runs
// after every event that changed the view. It returns the number of applied events.
func Pump(
	ctx context.Context,
	l stream.Listener,
	view *logview.Engine,
	log logger.Logger,
	onUpdate func(),
) int {
	log = logger.OrNop(log)
	applied := 0
	handle := func(evt *stream.Event) {
		if evt == nil || len(evt.Payload) == 0 {
			return
		}
		if Apply(view, evt.Payload, log) {
			applied++
			if onUpdate != nil {
				onUpdate()
			}
		}
	}

	for _, evt := range l.Snapshot.Events {
		handle(evt)
	}
	for {
		select {
		case <-ctx.Done():
			return applied
		case evt, ok := <-l.C:
			if !ok {
				return applied
			}
			handle(evt)
		}
	}
}

// Apply decodes one payload into view. Malformed messages are logged and skipped.
func Apply(view *logview.Engine, payload []byte, log logger.Logger) bool {
	msg, err := DecodeMessage(payload)
	if err != nil {
		logger.OrNop(log).Warn("skipping log message", "error", err.Error(), "bytes", len(payload))
		return false
	}
	switch msg.Kind {
	case MessageFragment:
		return view.Reconcile(msg.Fragment)
	case MessageError:
		view.AppendError(msg.StackTrace)
		return true
	default:
		view.AppendText(msg.Text)
		return true
	}
}
