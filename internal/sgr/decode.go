package sgr

import (
	"strconv"
	"strings"
)

// Decoration is a bit set of SGR text attributes.
type Decoration uint16

const (
	Bold Decoration = 1 << iota
	Dim
	Italic
	Underline
	Blink
	Reverse
	Hidden
	Strikethrough
)

var decorationNames = []struct {
	bit  Decoration
	name string
}{
	{Bold, "bold"},
	{Dim, "dim"},
	{Italic, "italic"},
	{Underline, "underline"},
	{Blink, "blink"},
	{Reverse, "reverse"},
	{Hidden, "hidden"},
	{Strikethrough, "strikethrough"},
}

func (d Decoration) Has(bit Decoration) bool { return d&bit != 0 }

// Names lists the set attributes in a fixed order.
func (d Decoration) Names() []string {
	var out []string
	for _, dn := range decorationNames {
		if d.Has(dn.bit) {
			out = append(out, dn.name)
		}
	}
	return out
}

// State is the style in effect at a point of a line.
type State struct {
	FG, BG      *Color
	Decorations Decoration
}

func (s State) equal(o State) bool {
	return colorEqual(s.FG, o.FG) && colorEqual(s.BG, o.BG) && s.Decorations == o.Decorations
}

func colorEqual(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type Options struct {
	Linkify    bool
	UseClasses bool
}

// Style is the inline rendition of a span.
type Style struct {
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// Span is a run of text sharing one style. Href is set on linkified runs.
type Span struct {
	Text        string
	FG, BG      *Color
	Decorations Decoration
	Href        string
	Class       string
	Style       Style
}

// Decode runs the full pipeline on one line. It never fails: unknown codes are
// ignored and non-SGR escape sequences are dropped while their surrounding text
// is kept.
func Decode(line string, opts Options) []Span {
	line = NormalizeCarriageReturn(NormalizeBackspace(line))
	spans := tokenize(line)
	if opts.Linkify {
		spans = Linkify(spans)
	}
	for i := range spans {
		applyStyle(&spans[i], opts.UseClasses)
	}
	return spans
}

// PlainText joins the visible text of spans.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}

func tokenize(line string) []Span {
	var (
		spans []Span
		cur   State
		text  strings.Builder
		state byte
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		spans = append(spans, Span{
			Text:        text.String(),
			FG:          cur.FG,
			BG:          cur.BG,
			Decorations: cur.Decorations,
		})
		text.Reset()
	}

	for len(line) > 0 {
		var seq string
		seq, line, state = nextToken(line, state)

		if !isEscape(seq) {
			text.WriteString(seq)
			continue
		}
		params, ok := sgrParams(seq)
		if !ok {
			continue
		}
		next := Apply(cur, params)
		if !next.equal(cur) {
			flush()
			cur = next
		}
	}
	flush()
	return spans
}

// sgrParams extracts the numeric parameters of an ESC [ ... m sequence.
// Empty parameters read as 0; unparsable ones as -1 so they are ignored.
func sgrParams(seq string) ([]int, bool) {
	var body string
	switch {
	case strings.HasPrefix(seq, "\x1b["):
		body = seq[2:]
	case strings.HasPrefix(seq, "\x9b"):
		body = seq[1:]
	default:
		return nil, false
	}
	if !strings.HasSuffix(body, "m") {
		return nil, false
	}
	body = strings.TrimSuffix(body, "m")
	if body == "" {
		return []int{0}, true
	}

	fields := strings.Split(strings.ReplaceAll(body, ":", ";"), ";")
	params := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			params = append(params, 0)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			n = -1
		}
		params = append(params, n)
	}
	return params, true
}

// Apply folds SGR parameters into s and returns the new state.
func Apply(s State, params []int) State {
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s = State{}
		case p >= 1 && p <= 9:
			if bit, ok := decorationFor(p); ok {
				s.Decorations |= bit
			}
		case p == 21:
			s.Decorations &^= Bold
		case p == 22:
			s.Decorations &^= Bold | Dim
		case p >= 23 && p <= 29:
			if bit, ok := decorationFor(p - 20); ok {
				s.Decorations &^= bit
			}
		case p >= 30 && p <= 37:
			c := Basic(p - 30)
			s.FG = &c
		case p == 38:
			c, used := extendedColor(params[i+1:])
			i += used
			if c != nil {
				s.FG = c
			}
		case p == 39:
			s.FG = nil
		case p >= 40 && p <= 47:
			c := Basic(p - 40)
			s.BG = &c
		case p == 48:
			c, used := extendedColor(params[i+1:])
			i += used
			if c != nil {
				s.BG = c
			}
		case p == 49:
			s.BG = nil
		case p >= 90 && p <= 97:
			c := Bright(p - 90)
			s.FG = &c
		case p >= 100 && p <= 107:
			c := Bright(p - 100)
			s.BG = &c
		}
	}
	return s
}

func decorationFor(p int) (Decoration, bool) {
	switch p {
	case 1:
		return Bold, true
	case 2:
		return Dim, true
	case 3:
		return Italic, true
	case 4:
		return Underline, true
	case 5:
		return Blink, true
	case 7:
		return Reverse, true
	case 8:
		return Hidden, true
	case 9:
		return Strikethrough, true
	}
	return 0, false
}

// extendedColor parses the tail of a 38/48 code. It returns how many params it
// consumed even when the color is invalid, so the rest of the sequence lines up.
func extendedColor(rest []int) (*Color, int) {
	if len(rest) == 0 {
		return nil, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return nil, len(rest)
		}
		c, ok := Palette256(rest[1])
		if !ok {
			return nil, 2
		}
		return &c, 2
	case 2:
		if len(rest) < 4 {
			return nil, len(rest)
		}
		c, ok := TrueColor(rest[1], rest[2], rest[3])
		if !ok {
			return nil, 4
		}
		return &c, 4
	}
	return nil, 1
}
