package monitor

import (
	"context"
	"fmt"

	"github.com/clearwatch/clearwatch/models"
	"github.com/clearwatch/clearwatch/services/detect"
	"github.com/clearwatch/clearwatch/services/ingest"
	"github.com/clearwatch/clearwatch/services/sink"
	"go.uber.org/zap"
)

// EventSink persists detection events. A sink error aborts the run; losing
// findings silently is worse than stopping.
type EventSink interface {
	Write(event models.Event) error
}

// Service drives the capture pipeline: open the source, normalize frames,
// drop allowlisted destinations, evaluate rules, persist findings.
type Service struct {
	source    ingest.Source
	scanner   *ingest.Scanner
	allowlist *detect.Allowlist
	engine    *detect.Engine
	sink      EventSink
	logger    *zap.Logger

	// onEvent, when set, observes every persisted event. Used for the
	// console alert stream.
	onEvent func(models.Event)
}

// NewService wires the pipeline. The sink's lifecycle belongs to the
// caller; Run never closes it.
func NewService(source ingest.Source, scanner *ingest.Scanner, allowlist *detect.Allowlist,
	engine *detect.Engine, eventSink EventSink, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		scanner:   scanner,
		allowlist: allowlist,
		engine:    engine,
		sink:      eventSink,
		logger:    logger,
	}
}

// OnEvent registers an observer invoked after each event is persisted.
// Must be called before Run.
func (s *Service) OnEvent(fn func(models.Event)) {
	s.onEvent = fn
}

// Run processes the capture stream until it ends or ctx is cancelled.
// Frame-level problems are absorbed upstream; only source and sink
// failures surface as errors.
func (s *Service) Run(ctx context.Context) error {
	stream, err := s.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open capture source: %w", err)
	}
	defer stream.Close()

	s.logger.Info("monitor started", zap.Int("allowlist_networks", s.allowlist.Len()))

	var frames, allowlisted, findings int
	for frame := range s.scanner.Frames(ctx, stream) {
		frames++
		if s.allowlist.Contains(frame.DstIP) {
			allowlisted++
			continue
		}
		event := s.engine.Evaluate(&frame)
		if event == nil {
			continue
		}
		if err := s.sink.Write(*event); err != nil {
			return fmt.Errorf("failed to persist event: %w", err)
		}
		findings++
		if s.onEvent != nil {
			s.onEvent(*event)
		}
	}

	s.logger.Info("monitor stopped",
		zap.Int("frames", frames),
		zap.Int("allowlisted", allowlisted),
		zap.Int("findings", findings))
	return ctx.Err()
}

// sink.Writer satisfies EventSink.
var _ EventSink = (*sink.Writer)(nil)
