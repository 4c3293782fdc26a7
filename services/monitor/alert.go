package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/clearwatch/clearwatch/models"
)

var (
	alertHighStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	alertMedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	alertLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	alertDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func severityStyle(severity models.Severity) lipgloss.Style {
	switch severity {
	case models.SeverityHigh:
		return alertHighStyle
	case models.SeverityMed:
		return alertMedStyle
	default:
		return alertLowStyle
	}
}

// RenderAlert formats one event as a single console line with the severity
// colored by weight. The raw JSONL record stays untouched; this is display
// only.
func RenderAlert(event models.Event) string {
	var b strings.Builder

	b.WriteString(alertDimStyle.Render(event.Timestamp.UTC().Format(time.RFC3339)))
	b.WriteString(" ")
	b.WriteString(severityStyle(event.Severity).Render(fmt.Sprintf("[%s]", event.Severity)))
	b.WriteString(" ")
	b.WriteString(event.Rule)
	b.WriteString(fmt.Sprintf(" %s:%d -> %s:%d", event.SrcIP, event.SrcPort, event.DstIP, event.DstPort))
	if event.Host != "" {
		b.WriteString(" host=" + event.Host)
	}

	keys := make([]string, 0, len(event.Context))
	for k := range event.Context {
		if k == "protocol" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(alertDimStyle.Render(k + "=" + event.Context[k]))
	}
	return b.String()
}
