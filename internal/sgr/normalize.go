package sgr

import (
	"strings"
	"unicode/utf8"
)

// NormalizeBackspace collapses every <char><BS> pair where char is not a newline,
// including pairs exposed by earlier collapses. Each rune is visited once and
// invalid UTF-8 bytes are kept as they are.
func NormalizeBackspace(s string) string {
	if !strings.ContainsRune(s, '\b') {
		return s
	}
	out := make([]byte, 0, len(s))
	sizes := make([]int, 0, len(s))
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		if s[i] == '\b' && len(sizes) > 0 && out[len(out)-1] != '\n' {
			out = out[:len(out)-sizes[len(sizes)-1]]
			sizes = sizes[:len(sizes)-1]
			i += size
			continue
		}
		out = append(out, s[i:i+size]...)
		sizes = append(sizes, size)
		i += size
	}
	return string(out)
}

type cell struct {
	// esc holds zero-width non-SGR sequences emitted before the glyph.
	esc string
	// pen rebuilds the SGR state the glyph was written with, starting from a reset.
	pen   string
	glyph string
}

// NormalizeCarriageReturn applies terminal overwrite semantics to a lone CR:
// the cursor returns to column 0 and following glyphs replace existing cells.
// CRLF is a plain newline. Escape sequences never count as columns, and cells
// that are not overwritten keep the style they were written with.
func NormalizeCarriageReturn(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.ContainsRune(s, '\r') {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.ContainsRune(line, '\r') {
			lines[i] = overwriteLine(line)
		}
	}
	return strings.Join(lines, "\n")
}

func overwriteLine(line string) string {
	var (
		cells   []cell
		col     int
		pending strings.Builder
		pen     string
		cur     State
		state   byte
	)
	for len(line) > 0 {
		if line[0] == '\r' {
			col = 0
			line = line[1:]
			continue
		}
		var seq string
		seq, line, state = nextToken(line, state)

		if isEscape(seq) {
			if params, ok := sgrParams(seq); ok {
				cur = Apply(cur, params)
				if cur.equal(State{}) {
					pen = ""
				} else {
					pen += seq
				}
			} else if !bareIntroducer(seq) {
				pending.WriteString(seq)
			}
			continue
		}
		c := cell{esc: pending.String(), pen: pen, glyph: seq}
		pending.Reset()
		if col < len(cells) {
			c.esc = cells[col].esc + c.esc
			cells[col] = c
		} else {
			cells = append(cells, c)
		}
		col++
	}

	var (
		b       strings.Builder
		emitted string
	)
	for _, c := range cells {
		b.WriteString(c.esc)
		if c.pen != emitted {
			if emitted != "" {
				b.WriteString("\x1b[0m")
			}
			b.WriteString(c.pen)
			emitted = c.pen
		}
		b.WriteString(c.glyph)
	}
	b.WriteString(pending.String())
	return b.String()
}

func isEscape(seq string) bool {
	if seq == "" {
		return false
	}
	switch seq[0] {
	case 0x1b, 0x9b, 0x9d, 0x90, 0x98, 0x9e, 0x9f:
		return true
	}
	return false
}
