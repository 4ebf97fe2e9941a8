package logview

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

func fragment(first, last int64, content ...string) debugreq.LogFragment {
	return debugreq.LogFragment{FirstIndex: first, LastIndex: last, Content: content}
}

func TestAppendTextDropsTrailingEmptySegment(t *testing.T) {
	e := New(Options{})
	e.AppendText("line1\nline2\n")
	got := texts(e.Lines())
	if len(got) != 2 || got[0] != "line1" || got[1] != "line2" {
		t.Fatalf("expected two lines, got %q", got)
	}
	if e.State() != StateStreaming {
		t.Fatalf("expected streaming state, got %s", e.State())
	}
}

func TestAppendTextKeepsInnerBlankLines(t *testing.T) {
	e := New(Options{})
	e.AppendText("a\n\nb")
	if got := texts(e.Lines()); strings.Join(got, "|") != "a||b" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestClearResetsNumbering(t *testing.T) {
	e := New(Options{})
	e.AppendText("one\ntwo\nthree")
	e.Reconcile(fragment(0, 0, "x"))

	e.Clear(40)
	if e.State() != StateEmpty || e.Len() != 0 {
		t.Fatalf("expected empty engine after clear")
	}
	if e.LastSeenIndex() != -1 {
		t.Fatalf("expected last seen index reset, got %d", e.LastSeenIndex())
	}

	e.AppendText("x")
	lines := e.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].Number != 40 {
		t.Fatalf("expected numbering from 40, got %d", lines[0].Number)
	}

	e.Clear()
	e.AppendText("y")
	if n := e.Lines()[0].Number; n != 0 {
		t.Fatalf("expected default reset to 0, got %d", n)
	}
}

func TestReconcileStaleFragmentIsNoop(t *testing.T) {
	e := New(Options{})
	if !e.Reconcile(fragment(5, 9, "5", "6", "7", "8", "9")) {
		t.Fatalf("first fragment must be applied")
	}
	before := e.Len()
	counter := e.Counter()

	if e.Reconcile(fragment(5, 9, "5", "6", "7", "8", "9")) {
		t.Fatalf("expected stale fragment to be ignored")
	}
	if e.Reconcile(fragment(2, 3, "2", "3")) {
		t.Fatalf("expected older fragment to be ignored")
	}
	if e.Len() != before || e.Counter() != counter {
		t.Fatalf("stale fragments must not append lines")
	}
}

func TestReconcileGapEmitsNotice(t *testing.T) {
	e := New(Options{})
	e.Reconcile(fragment(0, 9, "0", "1", "2", "3", "4", "5", "6", "7", "8", "9"))
	e.Clear()
	e.Reconcile(fragment(8, 9, "8", "9"))

	e.Reconcile(fragment(12, 15, "12", "13", "14", "15"))
	got := texts(e.Lines())
	want := []string{"8", "9", LossNotice, "12", "13", "14", "15"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected lines\n got %q\nwant %q", got, want)
	}
	if e.LastSeenIndex() != 15 {
		t.Fatalf("expected last seen 15, got %d", e.LastSeenIndex())
	}
}

func TestReconcileContiguousHasNoNotice(t *testing.T) {
	e := New(Options{})
	e.Reconcile(fragment(0, 1, "a", "b"))
	e.Reconcile(fragment(2, 3, "c", "d"))
	if got := texts(e.Lines()); strings.Join(got, "") != "abcd" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestReconcileFirstFragmentNeverReportsGap(t *testing.T) {
	e := New(Options{})
	e.Reconcile(fragment(100, 101, "a", "b"))
	for _, l := range texts(e.Lines()) {
		if l == LossNotice {
			t.Fatalf("first fragment must not report loss")
		}
	}
}

func TestReconcileSkipsAlreadySeenPrefix(t *testing.T) {
	e := New(Options{})
	e.Reconcile(fragment(0, 2, "a", "b", "c"))
	e.Reconcile(fragment(1, 4, "b", "c", "d", "e"))
	if got := texts(e.Lines()); strings.Join(got, "") != "abcde" {
		t.Fatalf("expected no duplicates, got %q", got)
	}
}

func TestReconcileInconsistentOverlapAppendsAll(t *testing.T) {
	e := New(Options{})
	e.Reconcile(fragment(0, 2, "a", "b", "c"))
	e.Reconcile(fragment(1, 4, "x"))
	if got := texts(e.Lines()); strings.Join(got, "") != "abcx" {
		t.Fatalf("unexpected lines %q", got)
	}
	if e.LastSeenIndex() != 4 {
		t.Fatalf("expected last seen 4, got %d", e.LastSeenIndex())
	}
}

func TestMaxLinesEvictsOldest(t *testing.T) {
	const n = 10
	e := New(Options{MaxLines: n})
	for i := 0; i < n+5; i++ {
		e.AppendText(string(rune('a' + i)))
	}
	lines := e.Lines()
	if len(lines) != n {
		t.Fatalf("expected %d lines, got %d", n, len(lines))
	}
	for i, l := range lines {
		want := string(rune('a' + 5 + i))
		if l.Text() != want {
			t.Fatalf("line %d: expected %q, got %q", i, want, l.Text())
		}
		if l.Number != int64(5+i) {
			t.Fatalf("line %d: expected number %d, got %d", i, 5+i, l.Number)
		}
	}
}

func TestDefaultMaxLines(t *testing.T) {
	if got := New(Options{MaxLines: -3}).MaxLines(); got != DefaultMaxLines {
		t.Fatalf("expected default %d, got %d", DefaultMaxLines, got)
	}
}

func TestAppendErrorRendersTwoParts(t *testing.T) {
	e := New(Options{})
	e.AppendError("TypeError: x is undefined\n  at main.js:3")
	got := texts(e.Lines())
	want := []string{ExceptionHeader, "TypeError: x is undefined", "  at main.js:3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestAppendTextDecodesANSIAndLinks(t *testing.T) {
	e := New(Options{Linkify: true, UseClasses: true})
	e.AppendText("\x1b[31merror\x1b[0m see www.example.com/path")
	line := e.Lines()[0]
	if line.Text() != "error see www.example.com/path" {
		t.Fatalf("unexpected text %q", line.Text())
	}
	if line.Spans[0].Class != "ansi-red-fg" {
		t.Fatalf("expected red class, got %q", line.Spans[0].Class)
	}
	last := line.Spans[len(line.Spans)-1]
	if last.Href != "http://www.example.com/path" {
		t.Fatalf("expected link span, got %+v", last)
	}
}

func TestConcurrentAppends(t *testing.T) {
	e := New(Options{MaxLines: 50})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.AppendText(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	if e.Len() != 50 || e.Counter() != 400 {
		t.Fatalf("unexpected len %d counter %d", e.Len(), e.Counter())
	}
}
