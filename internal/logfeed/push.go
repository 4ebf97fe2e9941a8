package logfeed

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/apidebug/internal/errdef"
	"github.com/unkn0wn-root/apidebug/internal/logger"
	"github.com/unkn0wn-root/apidebug/internal/stream"
)

const defaultReadLimit = 4 << 20

type PushOptions struct {
	Header    http.Header
	ReadLimit int64
	Log       logger.Logger
}

// DialPush connects to a websocket log channel and publishes every text or
// binary message into session from a background goroutine. The session closes
// when the server closes the connection, a read fails or the session is cancelled.
func DialPush(ctx context.Context, url string, session *stream.Session, opts PushOptions) error {
	log := logger.OrNop(opts.Log)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: opts.Header})
	if err != nil {
		wrapped := errdef.Wrap(errdef.CodeStream, err, "dial websocket %s", url)
		session.Close(wrapped)
		return wrapped
	}

	limit := opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	session.MarkOpen()
	log.Info("log channel connected", "url", url)
	go readLoop(conn, session, log)
	return nil
}

func readLoop(conn *websocket.Conn, session *stream.Session, log logger.Logger) {
	ctx := session.Context()
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			switch {
			case errors.As(err, &ce):
				log.Info("log channel closed by server",
					"code", int(ce.Code), "reason", ce.Reason)
				session.Close(nil)
			case ctx.Err() != nil:
				session.Close(nil)
			default:
				log.Err(err, "log channel read failed")
				session.Close(errdef.Wrap(errdef.CodeStream, err, "read websocket message"))
			}
			return
		}

		typ := "binary"
		if msgType == websocket.MessageText {
			typ = "text"
		}
		session.PublishPayload(
			append([]byte(nil), data...),
			map[string]string{"type": typ, "size": strconv.Itoa(len(data))},
		)
	}
}
