package debugexec

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/logger"
)

const indent = "    "

// NormalizeBody turns a raw payload into the canonical string body. A structured
// debug envelope ({"data": ..., "logs": {"content": [...]}}) is split into the
// rendered data and its log fragment.
func NormalizeBody(raw []byte) (string, *debugreq.LogFragment) {
	return NormalizeBodyWith(raw, nil)
}

func NormalizeBodyWith(raw []byte, log logger.Logger) (string, *debugreq.LogFragment) {
	log = logger.OrNop(log)
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	if !gjson.ValidBytes(raw) {
		return string(raw), nil
	}

	doc := gjson.ParseBytes(raw)
	if doc.IsObject() && doc.Get("logs.content").IsArray() {
		frag, err := decodeFragment(doc.Get("logs"))
		if err != nil {
			log.Err(err, "debug envelope logs are malformed, rendering raw object")
			return renderValue(doc), nil
		}
		data := doc.Get("data")
		if !data.Exists() || data.Type == gjson.Null {
			log.Debug("debug envelope has no data, body left empty", "lines", len(frag.Content))
			return "", frag
		}
		return renderValue(data), frag
	}
	return renderValue(doc), nil
}

func decodeFragment(logs gjson.Result) (*debugreq.LogFragment, error) {
	var frag debugreq.LogFragment
	if err := json.Unmarshal([]byte(logs.Raw), &frag); err != nil {
		return nil, err
	}
	if frag.Content == nil {
		frag.Content = []string{}
	}
	return &frag, nil
}

// renderValue applies the scalar rule, then falls back to indented JSON.
func renderValue(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number, gjson.True, gjson.False:
		return strings.TrimSpace(v.Raw)
	}
	return prettyJSON(v.Raw)
}

func prettyJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", indent); err != nil {
		return raw
	}
	return buf.String()
}
