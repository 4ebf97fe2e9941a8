package sgr

import "strings"

func applyStyle(sp *Span, useClasses bool) {
	if useClasses {
		sp.Class = ClassName(sp.FG, sp.BG, sp.Decorations)
		return
	}
	sp.Style = InlineStyle(sp.FG, sp.BG)
}

// ClassName joins "{bg}-bg {fg}-fg ansi-{decoration}...", skipping absent parts.
func ClassName(fg, bg *Color, d Decoration) string {
	var parts []string
	if bg != nil {
		parts = append(parts, bg.Name+"-bg")
	}
	if fg != nil {
		parts = append(parts, fg.Name+"-fg")
	}
	for _, name := range d.Names() {
		parts = append(parts, "ansi-"+name)
	}
	return strings.Join(parts, " ")
}

func InlineStyle(fg, bg *Color) Style {
	var st Style
	if fg != nil {
		st.Color = fg.CSS()
	}
	if bg != nil {
		st.BackgroundColor = bg.CSS()
	}
	return st
}
