package debugreq

import (
	"strings"

	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

type BodyType string

const (
	BodyNone BodyType = "None"
	BodyJSON BodyType = "JsonBody"
	BodyForm BodyType = "FormBody"
)

// RequestItem is one candidate param or header row. Only selected rows are sent.
type RequestItem struct {
	Key         string `json:"key"                   yaml:"key"`
	Value       string `json:"value"                 yaml:"value"`
	Selected    bool   `json:"selected"              yaml:"selected"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Request struct {
	Method   string        `json:"method"             yaml:"method"`
	Path     string        `json:"path"               yaml:"path"`
	Params   []RequestItem `json:"params,omitempty"   yaml:"params,omitempty"`
	Headers  []RequestItem `json:"headers,omitempty"  yaml:"headers,omitempty"`
	BodyType BodyType      `json:"bodyType,omitempty" yaml:"bodyType,omitempty"`
	JSONBody string        `json:"jsonBody,omitempty" yaml:"jsonBody,omitempty"`
}

// NormalizedMethod upper-cases the method and defaults to GET.
func (r Request) NormalizedMethod() string {
	m := strings.ToUpper(strings.TrimSpace(r.Method))
	if m == "" {
		return "GET"
	}
	return m
}

// EffectiveBodyType maps an empty body type to BodyNone.
func (r Request) EffectiveBodyType() BodyType {
	if r.BodyType == "" {
		return BodyNone
	}
	return r.BodyType
}

func (r Request) HasJSONBody() bool {
	return r.EffectiveBodyType() == BodyJSON && strings.TrimSpace(r.JSONBody) != ""
}

// HasHeader reports whether a selected header row matches name, ignoring case.
func (r Request) HasHeader(name string) bool {
	for _, item := range r.Headers {
		if item.Selected && strings.EqualFold(strings.TrimSpace(item.Key), name) {
			return true
		}
	}
	return false
}

// Clone copies the row slices so callers can add rows without touching the original.
func (r Request) Clone() Request {
	out := r
	out.Params = append([]RequestItem(nil), r.Params...)
	out.Headers = append([]RequestItem(nil), r.Headers...)
	return out
}

// Response is the canonical result of one debug execution.
type Response struct {
	Body       string        `json:"body"`
	Headers    []RequestItem `json:"headers"`
	Status     int           `json:"status,omitempty"`
	StatusText string        `json:"statusText,omitempty"`
	// Time is the elapsed milliseconds between dispatch and receipt.
	Time *int64 `json:"time,omitempty"`
	// Size is the Content-Length header in bits, not bytes.
	Size      *int64       `json:"size,omitempty"`
	Logs      *LogFragment `json:"logs,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	// URL is the final request URL after redirects.
	URL      string   `json:"url,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	// Timeline is set when network tracing was requested.
	Timeline *nettrace.Timeline `json:"timeline,omitempty"`
}

func (r *Response) Header(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value, true
		}
	}
	return "", false
}

// LogFragment is a contiguous slice of the server-side log ring, inclusive on both ends.
type LogFragment struct {
	FirstIndex int64    `json:"firstIndex"`
	LastIndex  int64    `json:"lastIndex"`
	Content    []string `json:"content"`
}

func (f LogFragment) Consistent() bool {
	return f.LastIndex-f.FirstIndex+1 == int64(len(f.Content))
}

type ErrorEnvelope struct {
	ErrorStackTrace string `json:"errorStackTrace"`
}
