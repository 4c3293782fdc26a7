package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"github.com/clearwatch/clearwatch/services/llm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoEvents is returned when the trailing window holds nothing to report.
var ErrNoEvents = fmt.Errorf("no events in the report window")

// ErrAnalystUnavailable is returned when the model server cannot be reached.
var ErrAnalystUnavailable = fmt.Errorf("analyst service is not available")

// EventSource provides the trailing window of events; satisfied by the
// store.
type EventSource interface {
	Window(window time.Duration, maxLines int) ([]models.Event, error)
}

// Config bounds the report window and names the output directory.
type Config struct {
	Window     time.Duration
	MaxLines   int
	ReportsDir string
}

// Generator turns a trailing window of detection events into a markdown
// summary report written under the reports directory.
type Generator struct {
	cfg     Config
	source  EventSource
	analyst llm.Analyst
	logger  *zap.Logger
}

// NewGenerator creates the reports directory if needed.
func NewGenerator(cfg Config, source EventSource, analyst llm.Analyst, logger *zap.Logger) (*Generator, error) {
	if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &Generator{cfg: cfg, source: source, analyst: analyst, logger: logger}, nil
}

// Generate collects the window, sorts findings by urgency, asks the analyst
// for a summary and writes it to a new report file. Returns the report path.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	if !g.analyst.Available(ctx) {
		return "", ErrAnalystUnavailable
	}

	events, err := g.source.Window(g.cfg.Window, g.cfg.MaxLines)
	if err != nil {
		return "", fmt.Errorf("failed to collect report window: %w", err)
	}
	if len(events) == 0 {
		return "", ErrNoEvents
	}
	sortByUrgency(events)

	g.logger.Info("generating report", zap.Int("events", len(events)))
	summary, err := g.analyst.Summarize(ctx, events)
	if err != nil {
		return "", fmt.Errorf("failed to generate report content: %w", err)
	}

	id := uuid.New()
	name := fmt.Sprintf("security_report_%s_%s.md",
		time.Now().UTC().Format("2006-01-02_15-04-05"), id.String()[:8])
	path := filepath.Join(g.cfg.ReportsDir, name)

	content := fmt.Sprintf("<!-- report id: %s -->\n\n%s\n", id, summary)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	g.logger.Info("report saved", zap.String("path", path), zap.String("report_id", id.String()))
	return path, nil
}

var severityRank = map[models.Severity]int{
	models.SeverityHigh: 0,
	models.SeverityMed:  1,
	models.SeverityLow:  2,
}

// sortByUrgency orders events HIGH before MED before LOW, oldest first
// within a severity.
func sortByUrgency(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ri, iKnown := severityRank[events[i].Severity]
		rj, jKnown := severityRank[events[j].Severity]
		if !iKnown {
			ri = len(severityRank)
		}
		if !jKnown {
			rj = len(severityRank)
		}
		if ri != rj {
			return ri < rj
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
