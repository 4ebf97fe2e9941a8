package sgr

import (
	"fmt"
	"strconv"
)

// Color is a resolved RGB triple plus the class stem used in class mode.
type Color struct {
	R, G, B uint8
	Name    string
}

// RGB renders the triple as "r, g, b".
func (c Color) RGB() string {
	return fmt.Sprintf("%d, %d, %d", c.R, c.G, c.B)
}

// CSS renders the triple as "rgb(r, g, b)".
func (c Color) CSS() string {
	return "rgb(" + c.RGB() + ")"
}

// Hex renders the triple as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var basicColors = [8]Color{
	{0, 0, 0, "ansi-black"},
	{187, 0, 0, "ansi-red"},
	{0, 187, 0, "ansi-green"},
	{187, 187, 0, "ansi-yellow"},
	{0, 0, 187, "ansi-blue"},
	{187, 0, 187, "ansi-magenta"},
	{0, 187, 187, "ansi-cyan"},
	{255, 255, 255, "ansi-white"},
}

var brightColors = [8]Color{
	{85, 85, 85, "ansi-bright-black"},
	{255, 85, 85, "ansi-bright-red"},
	{0, 255, 0, "ansi-bright-green"},
	{255, 255, 85, "ansi-bright-yellow"},
	{85, 85, 255, "ansi-bright-blue"},
	{255, 85, 255, "ansi-bright-magenta"},
	{85, 255, 255, "ansi-bright-cyan"},
	{255, 255, 255, "ansi-bright-white"},
}

var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

func Basic(i int) Color  { return basicColors[i&7] }
func Bright(i int) Color { return brightColors[i&7] }

// Palette256 resolves an xterm 256-color index. ok is false outside 0..255.
func Palette256(n int) (Color, bool) {
	switch {
	case n < 0 || n > 255:
		return Color{}, false
	case n < 8:
		return basicColors[n], true
	case n < 16:
		return brightColors[n-8], true
	case n < 232:
		n -= 16
		c := Color{
			R: cubeLevels[n/36],
			G: cubeLevels[(n/6)%6],
			B: cubeLevels[n%6],
		}
		c.Name = "ansi-palette-" + strconv.Itoa(n+16)
		return c, true
	default:
		level := uint8(8 + (n-232)*10)
		return Color{R: level, G: level, B: level, Name: "ansi-palette-" + strconv.Itoa(n)}, true
	}
}

// TrueColor builds a color from 24-bit components. ok is false when any
// component is outside 0..255.
func TrueColor(r, g, b int) (Color, bool) {
	if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 {
		return Color{}, false
	}
	return Color{R: uint8(r), G: uint8(g), B: uint8(b), Name: "ansi-truecolor"}, true
}
