package termview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/unkn0wn-root/apidebug/internal/nettrace"
)

const timelineBarWidth = 30

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f87ff"))
	phaseStyle = lipgloss.NewStyle().Width(9)
)

// RenderTimeline lists every traced phase with its duration and a bar scaled
// to the whole round trip.
func RenderTimeline(tl *nettrace.Timeline) string {
	if tl == nil || len(tl.Phases) == 0 {
		return ""
	}
	total := tl.Duration
	if total <= 0 {
		for _, p := range tl.Phases {
			total += p.Duration
		}
	}

	var b strings.Builder
	for _, p := range tl.Phases {
		b.WriteString(phaseStyle.Render(string(p.Kind)))
		b.WriteString(fmt.Sprintf(" %9s ", roundDuration(p.Duration)))
		b.WriteString(barStyle.Render(bar(p.Duration, total)))

		var notes []string
		if p.Addr != "" {
			notes = append(notes, p.Addr)
		}
		if p.Reused {
			notes = append(notes, "reused")
		}
		if p.Err != "" {
			notes = append(notes, "error: "+p.Err)
		}
		if len(notes) > 0 {
			b.WriteString(" ")
			b.WriteString(metaStyle.Render(strings.Join(notes, ", ")))
		}
		b.WriteByte('\n')
	}
	b.WriteString(phaseStyle.Render("total"))
	b.WriteString(fmt.Sprintf(" %9s\n", roundDuration(total)))
	return b.String()
}

func bar(d, total time.Duration) string {
	if total <= 0 || d <= 0 {
		return ""
	}
	n := int(int64(d) * timelineBarWidth / int64(total))
	if n == 0 {
		n = 1
	}
	if n > timelineBarWidth {
		n = timelineBarWidth
	}
	return strings.Repeat("█", n)
}

func roundDuration(d time.Duration) time.Duration {
	if d >= time.Millisecond {
		return d.Round(10 * time.Microsecond)
	}
	return d.Round(time.Microsecond)
}
