// Package harexport writes debug executions as HTTP Archive entries.
package harexport

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pb33f/harhar"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

const creatorName = "apidebug"

// Document is the root of a HAR file.
type Document struct {
	Log Log `json:"log"`
}

type Log struct {
	Version string         `json:"version"`
	Creator harhar.Creator `json:"creator"`
	Entries []harhar.Entry `json:"entries"`
}

// NewEntry converts one execution. debugHeader names the correlation header,
// which is listed with the request headers when the caller did not set it.
func NewEntry(
	req debugreq.Request,
	resp *debugreq.Response,
	debugHeader string,
	at time.Time,
) harhar.Entry {
	entry := harhar.Entry{
		Start:   at.Format(time.RFC3339Nano),
		Request: buildRequest(req, resp, debugHeader),
		Timings: harhar.Timings{DNS: -1, Connect: -1, SSL: -1},
	}
	if resp == nil {
		return entry
	}

	entry.Response = buildResponse(resp)
	if resp.Time != nil {
		entry.Time = float64(*resp.Time)
		entry.Timings.Wait = float64(*resp.Time)
	}
	if tl := resp.Timeline; tl != nil {
		entry.Timings = timingsFrom(tl)
		entry.Time = ms(tl.Duration)
	}
	return entry
}

func buildRequest(req debugreq.Request, resp *debugreq.Response, debugHeader string) harhar.Request {
	out := harhar.Request{
		Method:      req.NormalizedMethod(),
		URL:         strings.TrimSpace(req.Path),
		HTTPVersion: "HTTP/1.1",
		HeadersSize: -1,
		BodySize:    0,
	}
	if resp != nil && resp.URL != "" {
		out.URL = resp.URL
	}

	for _, h := range req.Headers {
		if h.Selected && strings.TrimSpace(h.Key) != "" {
			out.Headers = append(out.Headers, harhar.NameValuePair{Name: strings.TrimSpace(h.Key), Value: h.Value})
		}
	}
	if resp != nil && resp.SessionID != "" && debugHeader != "" && !req.HasHeader(debugHeader) {
		out.Headers = append(out.Headers, harhar.NameValuePair{Name: debugHeader, Value: resp.SessionID})
	}

	params := debugreq.BuildParams(req.Params)
	switch req.EffectiveBodyType() {
	case debugreq.BodyJSON:
		out.Body = harhar.BodyType{MIMEType: "application/json", Content: req.JSONBody}
		out.BodySize = len(req.JSONBody)
	case debugreq.BodyForm:
		encoded := params.URLValues().Encode()
		out.Body = harhar.BodyType{MIMEType: "application/x-www-form-urlencoded", Content: encoded}
		out.BodySize = len(encoded)
		return out
	}
	for _, key := range params.Keys() {
		v, _ := params.Get(key)
		for _, value := range v.Values() {
			out.QueryParams = append(out.QueryParams, harhar.NameValuePair{Name: key, Value: value})
		}
	}
	return out
}

func buildResponse(resp *debugreq.Response) harhar.Response {
	out := harhar.Response{
		StatusCode:  resp.Status,
		StatusText:  resp.StatusText,
		HTTPVersion: "HTTP/1.1",
		HeadersSize: -1,
		BodySize:    -1,
	}
	for _, h := range resp.Headers {
		out.Headers = append(out.Headers, harhar.NameValuePair{Name: h.Key, Value: h.Value})
	}
	mime, _ := resp.Header("content-type")
	out.Body = harhar.BodyResponseType{
		Size:     len(resp.Body),
		MIMEType: mime,
		Content:  resp.Body,
	}
	if resp.Size != nil {
		out.BodySize = int(*resp.Size / 8)
	}
	return out
}

func timingsFrom(tl *nettrace.Timeline) harhar.Timings {
	t := harhar.Timings{
		DNS:     -1,
		Connect: -1,
		SSL:     -1,
		Wait:    ms(tl.Sum(nettrace.PhaseWait)),
		Receive: ms(tl.Sum(nettrace.PhaseTransfer)),
	}
	if _, ok := tl.Phase(nettrace.PhaseDNS); ok {
		t.DNS = ms(tl.Sum(nettrace.PhaseDNS))
	}
	if _, ok := tl.Phase(nettrace.PhaseConnect); ok {
		t.Connect = ms(tl.Sum(nettrace.PhaseConnect))
	}
	if _, ok := tl.Phase(nettrace.PhaseTLS); ok {
		t.SSL = ms(tl.Sum(nettrace.PhaseTLS))
	}
	return t
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Append adds entries to the HAR file at path, creating it when missing.
func Append(path string, entries ...harhar.Entry) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	doc.Log.Entries = append(doc.Log.Entries, entries...)
	return write(path, doc)
}

// Load reads a HAR file. A missing file yields an empty document.
func Load(path string) (*Document, error) {
	doc := &Document{Log: Log{
		Version: "1.2",
		Creator: harhar.Creator{Name: creatorName, Version: "1.0"},
	}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read har %s", path)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "parse har %s", path)
	}
	return doc, nil
}

func write(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "encode har")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create har dir")
	}
	tmp, err := os.CreateTemp(dir, ".apidebug-har-*.tmp")
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create temp har")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errdef.Wrap(errdef.CodeFilesystem, err, "write har")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errdef.Wrap(errdef.CodeFilesystem, err, "close har")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace har")
	}
	return nil
}
