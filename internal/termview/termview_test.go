package termview

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/logview"
)

func TestRenderLinesWithGutter(t *testing.T) {
	view := logview.New(logview.Options{})
	view.Clear(8)
	view.AppendText("\x1b[31mfirst\x1b[0m\nsecond\nthird")

	out := ansi.Strip(RenderLines(view.Lines(), Options{LineNumbers: true}))
	want := " 8 │ first\n 9 │ second\n10 │ third"
	if out != want {
		t.Fatalf("unexpected output\n got %q\nwant %q", out, want)
	}
}

func TestRenderLinesHyperlinks(t *testing.T) {
	view := logview.New(logview.Options{Linkify: true})
	view.AppendText("docs at www.example.com/path")

	out := RenderLines(view.Lines(), Options{Hyperlinks: true})
	if !strings.Contains(out, ansi.SetHyperlink("http://www.example.com/path")) {
		t.Fatalf("expected osc 8 link in %q", out)
	}
	if got := ansi.Strip(out); got != "docs at www.example.com/path" {
		t.Fatalf("unexpected visible text %q", got)
	}

	plain := RenderLines(view.Lines(), Options{})
	if strings.Contains(plain, ansi.SetHyperlink("http://www.example.com/path")) {
		t.Fatalf("links must be opt-in")
	}
}

func TestRenderLinesHiddenText(t *testing.T) {
	view := logview.New(logview.Options{})
	view.AppendText("a\x1b[8msecret\x1b[28mb")
	if got := ansi.Strip(RenderLines(view.Lines(), Options{})); got != "a      b" {
		t.Fatalf("expected hidden text to be blanked, got %q", got)
	}
}

func TestRenderResponse(t *testing.T) {
	elapsed := int64(42)
	size := int64(96)
	resp := &debugreq.Response{
		Body:       "{\n    \"ok\": true\n}",
		Headers:    []debugreq.RequestItem{{Key: "content-type", Value: "application/json", Selected: true}},
		Status:     201,
		StatusText: "Created",
		Time:       &elapsed,
		Size:       &size,
		SessionID:  "debug_1_1",
		Warnings:   []string{"GET request carries a JSON body"},
	}
	out := ansi.Strip(RenderResponse(resp, Options{}))
	for _, want := range []string{
		"201 Created",
		"42 ms",
		"96 bits (12 B)",
		"session debug_1_1",
		"warning: GET request carries a JSON body",
		"content-type: application/json",
		"\"ok\": true",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderBodyHighlightKeepsText(t *testing.T) {
	body := "{\n    \"a\": [1, 2]\n}"
	out := RenderBody(body, Options{Highlight: true})
	if got := strings.TrimRight(ansi.Strip(out), "\n"); got != body {
		t.Fatalf("highlighting must not change text, got %q", got)
	}
	if got := RenderBody("plain text", Options{Highlight: true}); got != "plain text" {
		t.Fatalf("non-json bodies are returned as is, got %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		96:       "96 bits (12 B)",
		16384:    "16384 bits (2.0 KiB)",
		25165824: "25165824 bits (3.0 MiB)",
	}
	for bits, want := range cases {
		if got := FormatSize(bits); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", bits, got, want)
		}
	}
}
