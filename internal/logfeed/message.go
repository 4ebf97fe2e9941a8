package logfeed

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
)

type MessageKind int

const (
	MessageText MessageKind = iota
	MessageFragment
	MessageError
)

// Message is a decoded log channel payload.
type Message struct {
	Kind       MessageKind
	Text       string
	Fragment   debugreq.LogFragment
	StackTrace string
}

var ErrUnrecognized = errors.New("unrecognized log message")

// DecodeMessage classifies a payload. Accepted shapes:
//
//	{"firstIndex":..,"lastIndex":..,"content":[..]}   fragment
//	{"logs":{...fragment...}, ...}                     fragment inside a debug envelope
//	{"errorStackTrace":"..."}                          error envelope
//
// Payloads that are not JSON are treated as raw log text. JSON of any other
// shape yields ErrUnrecognized.
func DecodeMessage(payload []byte) (Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Message{}, ErrUnrecognized
	}
	if !gjson.ValidBytes(trimmed) {
		return Message{Kind: MessageText, Text: string(payload)}, nil
	}

	doc := gjson.ParseBytes(trimmed)
	if !doc.IsObject() {
		return Message{}, ErrUnrecognized
	}

	if st := doc.Get("errorStackTrace"); st.Exists() {
		var env debugreq.ErrorEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return Message{}, err
		}
		return Message{Kind: MessageError, StackTrace: env.ErrorStackTrace}, nil
	}

	raw := doc
	if !raw.Get("content").IsArray() && doc.Get("logs.content").IsArray() {
		raw = doc.Get("logs")
	}
	if !raw.Get("content").IsArray() {
		return Message{}, ErrUnrecognized
	}

	var frag debugreq.LogFragment
	if err := json.Unmarshal([]byte(raw.Raw), &frag); err != nil {
		return Message{}, err
	}
	return Message{Kind: MessageFragment, Fragment: frag}, nil
}
