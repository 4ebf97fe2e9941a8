package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
)

type captured struct {
	method      string
	path        string
	rawQuery    string
	contentType string
	body        string
	header      http.Header
}

func newCaptureServer(t *testing.T, status int, payload string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.rawQuery = r.URL.RawQuery
		got.contentType = r.Header.Get("Content-Type")
		got.body = string(data)
		got.header = r.Header.Clone()
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestExecuteSendsParamsHeadersAndJSONBody(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, `{"ok":true}`)
	client := NewClient()

	req := &debugreq.Request{
		Method: "post",
		Path:   "/api/items",
		Params: []debugreq.RequestItem{
			{Key: "tag", Value: "a", Selected: true},
			{Key: "tag", Value: "b", Selected: true},
			{Key: "skip", Value: "x", Selected: false},
		},
		Headers: []debugreq.RequestItem{
			{Key: "X-Env", Value: "dev", Selected: true},
			{Key: "X-Env", Value: "qa", Selected: true},
		},
		BodyType: debugreq.BodyJSON,
		JSONBody: `{"name":"widget"}`,
	}

	resp, err := client.Execute(context.Background(), req, Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.method != http.MethodPost {
		t.Fatalf("expected POST, got %s", got.method)
	}
	if got.path != "/api/items" {
		t.Fatalf("unexpected path %q", got.path)
	}
	if got.rawQuery != "tag=a&tag=b" {
		t.Fatalf("unexpected query %q", got.rawQuery)
	}
	if got.contentType != "application/json" {
		t.Fatalf("expected json content type, got %q", got.contentType)
	}
	if got.body != `{"name":"widget"}` {
		t.Fatalf("unexpected body %q", got.body)
	}
	if vals := got.header.Values("X-Env"); len(vals) != 2 || vals[0] != "dev" || vals[1] != "qa" {
		t.Fatalf("expected both X-Env values, got %v", vals)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Headers.Get("X-Trace") != "abc" {
		t.Fatalf("expected response header to be captured")
	}
	if resp.StatusText() != "OK" {
		t.Fatalf("unexpected status text %q", resp.StatusText())
	}
}

func TestExecuteKeepsExplicitContentType(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, "")
	req := &debugreq.Request{
		Method: "PUT",
		Path:   srv.URL + "/raw",
		Headers: []debugreq.RequestItem{
			{Key: "content-type", Value: "application/vnd.api+json", Selected: true},
		},
		BodyType: debugreq.BodyJSON,
		JSONBody: `{}`,
	}
	if _, err := NewClient().Execute(context.Background(), req, Options{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.contentType != "application/vnd.api+json" {
		t.Fatalf("expected caller content type, got %q", got.contentType)
	}
	if vals := got.header.Values("Content-Type"); len(vals) != 1 {
		t.Fatalf("expected a single content type header, got %v", vals)
	}
}

func TestExecuteFormBody(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusCreated, "")
	req := &debugreq.Request{
		Method: "POST",
		Path:   "/form",
		Params: []debugreq.RequestItem{
			{Key: "user", Value: "ann", Selected: true},
			{Key: "role", Value: "admin", Selected: true},
		},
		BodyType: debugreq.BodyForm,
	}
	resp, err := NewClient().Execute(context.Background(), req, Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.rawQuery != "" {
		t.Fatalf("form params must not be sent in the query, got %q", got.rawQuery)
	}
	if got.body != "role=admin&user=ann" {
		t.Fatalf("unexpected form body %q", got.body)
	}
	if got.contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", got.contentType)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestExecuteNon2xxIsData(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusInternalServerError, "boom")
	resp, err := NewClient().Execute(
		context.Background(),
		&debugreq.Request{Method: "GET", Path: "/fail"},
		Options{BaseURL: srv.URL},
	)
	if err != nil {
		t.Fatalf("non-2xx must not be an error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || string(resp.Body) != "boom" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestExecuteRejectsUnknownBodyType(t *testing.T) {
	called := false
	client := NewClient()
	client.SetHTTPFactory(func(Options) (*http.Client, error) {
		called = true
		return http.DefaultClient, nil
	})
	_, err := client.Execute(
		context.Background(),
		&debugreq.Request{Method: "POST", Path: "http://example.invalid/x", BodyType: "Multipart"},
		Options{},
	)
	if !errdef.Is(err, errdef.CodeRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
	if called {
		t.Fatalf("request must not be dispatched")
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	client := NewClient()
	client.SetHTTPFactory(func(Options) (*http.Client, error) {
		return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})}, nil
	})
	_, err := client.Execute(
		context.Background(),
		&debugreq.Request{Path: "http://example.invalid/x"},
		Options{},
	)
	if !errdef.Is(err, errdef.CodeHTTP) {
		t.Fatalf("expected http error, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected cause in error, got %v", err)
	}
}

func TestExecuteMeasuresDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewClient().Execute(
		context.Background(),
		&debugreq.Request{Path: "/slow"},
		Options{BaseURL: srv.URL},
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Duration < 20*time.Millisecond {
		t.Fatalf("expected duration >= 20ms, got %s", resp.Duration)
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		path string
		want string
		err  bool
	}{
		{name: "relative", base: "http://h/api/", path: "/items", want: "http://h/api/items"},
		{name: "relative no slash", base: "http://h/api", path: "items", want: "http://h/api/items"},
		{name: "absolute path wins", base: "http://h", path: "https://other/x", want: "https://other/x"},
		{name: "query merge", base: "http://h?k=1", path: "/p?q=2", want: "http://h/p?k=1&q=2"},
		{name: "base only", base: "http://h/root", path: "", want: "http://h/root"},
		{name: "missing base", base: "", path: "/items", err: true},
		{name: "empty", base: "", path: "", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveURL(tc.base, tc.path)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.String())
			}
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
