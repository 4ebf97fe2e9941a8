package sgr

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// nextToken splits the next grapheme or escape sequence off s. A string
// sequence (OSC, DCS, SOS, PM, APC) that runs to the end of s without a BEL or
// ST terminator only consumes its introducer; the rest is scanned as text.
func nextToken(s string, state byte) (tok, rest string, next byte) {
	seq, _, n, next := ansi.DecodeSequence(s, state, nil)
	if n <= 0 {
		return s[:1], s[1:], next
	}
	if n == len(s) {
		if k := introducerLen(seq); k > 0 && !terminated(seq[k:]) {
			return seq[:k], s[k:], 0
		}
	}
	return seq, s[n:], next
}

func introducerLen(seq string) int {
	if len(seq) >= 2 && seq[0] == 0x1b {
		switch seq[1] {
		case ']', 'P', 'X', '^', '_':
			return 2
		}
		return 0
	}
	if seq != "" {
		switch seq[0] {
		case 0x9d, 0x90, 0x98, 0x9e, 0x9f:
			return 1
		}
	}
	return 0
}

func terminated(body string) bool {
	return strings.HasSuffix(body, "\x07") ||
		strings.HasSuffix(body, "\x1b\\") ||
		strings.HasSuffix(body, "\x9c")
}

// bareIntroducer reports a string-sequence introducer left over by nextToken.
func bareIntroducer(tok string) bool {
	k := introducerLen(tok)
	return k > 0 && k == len(tok)
}
