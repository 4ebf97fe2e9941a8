package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
)

// requestFile is the on-disk form of a debug request. YAML is a superset of
// JSON, so one decoder reads both. Rows omit "selected" to mean selected.
type requestFile struct {
	Method   string     `yaml:"method"`
	Path     string     `yaml:"path"`
	Params   []fileItem `yaml:"params"`
	Headers  []fileItem `yaml:"headers"`
	BodyType string     `yaml:"bodyType"`
	JSONBody yaml.Node  `yaml:"jsonBody"`
}

type fileItem struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Selected    *bool  `yaml:"selected"`
	Description string `yaml:"description"`
}

func loadRequestFile(path string) (debugreq.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return debugreq.Request{}, errdef.Wrap(errdef.CodeFilesystem, err, "read request file %s", path)
	}
	return parseRequestFile(data)
}

func parseRequestFile(data []byte) (debugreq.Request, error) {
	var rf requestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return debugreq.Request{}, errdef.Wrap(errdef.CodeRequest, err, "parse request file")
	}
	if strings.TrimSpace(rf.Path) == "" {
		return debugreq.Request{}, errdef.New(errdef.CodeRequest, "request file has no path")
	}

	req := debugreq.Request{
		Method:  rf.Method,
		Path:    strings.TrimSpace(rf.Path),
		Params:  toItems(rf.Params),
		Headers: toItems(rf.Headers),
	}

	body, err := jsonBody(rf.JSONBody)
	if err != nil {
		return debugreq.Request{}, err
	}
	req.JSONBody = body

	switch bt := strings.TrimSpace(rf.BodyType); {
	case bt != "":
		req.BodyType = debugreq.BodyType(bt)
	case body != "":
		req.BodyType = debugreq.BodyJSON
	default:
		req.BodyType = debugreq.BodyNone
	}
	return req, nil
}

// jsonBody accepts either a literal JSON string or a structured YAML value,
// which is re-encoded as JSON.
func jsonBody(node yaml.Node) (string, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return "", nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		return node.Value, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return "", errdef.Wrap(errdef.CodeRequest, err, "decode jsonBody")
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeRequest, err, "encode jsonBody")
	}
	return string(out), nil
}

func toItems(in []fileItem) []debugreq.RequestItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]debugreq.RequestItem, 0, len(in))
	for _, it := range in {
		selected := true
		if it.Selected != nil {
			selected = *it.Selected
		}
		out = append(out, debugreq.RequestItem{
			Key:         it.Key,
			Value:       it.Value,
			Selected:    selected,
			Description: it.Description,
		})
	}
	return out
}

// applyBodyEdits patches the JSON body with path=value assignments and path
// deletions (gjson path syntax). Values that are valid JSON are inserted as-is,
// anything else as a string.
func applyBodyEdits(req *debugreq.Request, sets, unsets []string) error {
	if len(sets) == 0 && len(unsets) == 0 {
		return nil
	}
	if req.EffectiveBodyType() == debugreq.BodyForm {
		return errdef.New(errdef.CodeRequest, "--set/--unset need a JSON body, request uses %s", req.BodyType)
	}

	body := strings.TrimSpace(req.JSONBody)
	if body == "" {
		body = "{}"
	}
	var err error
	for _, assignment := range sets {
		path, value, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return errdef.New(errdef.CodeRequest, "invalid --set %q, want path=value", assignment)
		}
		path = strings.TrimSpace(path)
		if gjson.Valid(value) {
			body, err = sjson.SetRaw(body, path, value)
		} else {
			body, err = sjson.Set(body, path, value)
		}
		if err != nil {
			return errdef.Wrap(errdef.CodeRequest, err, "set %s", path)
		}
	}
	for _, path := range unsets {
		body, err = sjson.Delete(body, strings.TrimSpace(path))
		if err != nil {
			return errdef.Wrap(errdef.CodeRequest, err, "unset %s", path)
		}
	}

	req.JSONBody = body
	req.BodyType = debugreq.BodyJSON
	return nil
}
