// Package termview renders debug responses and log lines for a terminal.
package termview

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/logview"
	"github.com/unkn0wn-root/apidebug/internal/sgr"
)

type Options struct {
	LineNumbers bool
	Hyperlinks  bool
	// Highlight enables chroma highlighting of JSON bodies.
	Highlight      bool
	HighlightStyle string
}

var (
	gutterStyle  = lipgloss.NewStyle().Faint(true)
	metaStyle    = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffbb00")).Bold(true)
	statusOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00bb00")).Bold(true)
	statusClient = lipgloss.NewStyle().Foreground(lipgloss.Color("#bbbb00")).Bold(true)
	statusServer = lipgloss.NewStyle().Foreground(lipgloss.Color("#bb0000")).Bold(true)
)

// RenderLines renders each line on its own row, optionally behind a number gutter.
func RenderLines(lines []logview.Line, opts Options) string {
	if len(lines) == 0 {
		return ""
	}
	width := 0
	if opts.LineNumbers {
		width = len(strconv.FormatInt(lines[len(lines)-1].Number, 10))
		if w := len(strconv.FormatInt(lines[0].Number, 10)); w > width {
			width = w
		}
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if opts.LineNumbers {
			b.WriteString(gutterStyle.Render(fmt.Sprintf("%*d │", width, line.Number)))
			b.WriteByte(' ')
		}
		b.WriteString(RenderSpans(line.Spans, opts))
	}
	return b.String()
}

func RenderSpans(spans []sgr.Span, opts Options) string {
	var b strings.Builder
	for _, sp := range spans {
		text := sp.Text
		if sp.Decorations.Has(sgr.Hidden) {
			text = strings.Repeat(" ", ansi.StringWidth(text))
		}
		rendered := spanStyle(sp).Render(text)
		if opts.Hyperlinks && sp.Href != "" {
			rendered = ansi.SetHyperlink(sp.Href) + rendered + ansi.ResetHyperlink()
		}
		b.WriteString(rendered)
	}
	return b.String()
}

func spanStyle(sp sgr.Span) lipgloss.Style {
	st := lipgloss.NewStyle()
	if sp.FG != nil {
		st = st.Foreground(lipgloss.Color(sp.FG.Hex()))
	}
	if sp.BG != nil {
		st = st.Background(lipgloss.Color(sp.BG.Hex()))
	}
	d := sp.Decorations
	return st.
		Bold(d.Has(sgr.Bold)).
		Faint(d.Has(sgr.Dim)).
		Italic(d.Has(sgr.Italic)).
		Underline(d.Has(sgr.Underline) || sp.Href != "").
		Blink(d.Has(sgr.Blink)).
		Reverse(d.Has(sgr.Reverse)).
		Strikethrough(d.Has(sgr.Strikethrough))
}

// RenderResponse prints the status line, timing, headers and body of resp.
func RenderResponse(resp *debugreq.Response, opts Options) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder

	status := strings.TrimSpace(fmt.Sprintf("%d %s", resp.Status, resp.StatusText))
	b.WriteString(statusStyle(resp.Status).Render(status))

	var meta []string
	if resp.Time != nil {
		meta = append(meta, fmt.Sprintf("%d ms", *resp.Time))
	}
	if resp.Size != nil {
		meta = append(meta, FormatSize(*resp.Size))
	}
	if resp.SessionID != "" {
		meta = append(meta, "session "+resp.SessionID)
	}
	if len(meta) > 0 {
		b.WriteString("  ")
		b.WriteString(metaStyle.Render(strings.Join(meta, " · ")))
	}
	b.WriteByte('\n')

	for _, w := range resp.Warnings {
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteByte('\n')
	}
	for _, h := range resp.Headers {
		b.WriteString(headerStyle.Render(h.Key + ":"))
		b.WriteByte(' ')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}

	if resp.Body != "" {
		b.WriteByte('\n')
		b.WriteString(RenderBody(resp.Body, opts))
		if !strings.HasSuffix(resp.Body, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// RenderBody highlights JSON bodies when enabled and falls back to plain text.
func RenderBody(body string, opts Options) string {
	if !opts.Highlight || !looksLikeJSON(body) {
		return body
	}
	style := opts.HighlightStyle
	if style == "" {
		style = "monokai"
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, body, "json", "terminal256", style); err != nil {
		return body
	}
	return buf.String()
}

func looksLikeJSON(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return gjson.Valid(trimmed)
}

func statusStyle(code int) lipgloss.Style {
	switch {
	case code >= 500:
		return statusServer
	case code >= 400:
		return statusClient
	default:
		return statusOK
	}
}

// FormatSize shows a bit count with its byte equivalent.
func FormatSize(bits int64) string {
	bytes := bits / 8
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%d bits (%.1f MiB)", bits, float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%d bits (%.1f KiB)", bits, float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d bits (%d B)", bits, bytes)
	}
}
