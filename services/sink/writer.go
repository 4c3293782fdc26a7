package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

// ErrClosed is returned by Write after the sink has been closed.
var ErrClosed = errors.New("event sink is closed")

// Policy controls when the active segment is sealed and a new one opened.
// Rotation is checked before each write, so a segment may exceed MaxBytes
// by at most one record.
type Policy struct {
	Dir             string
	Interval        time.Duration
	MaxBytes        int64
	FilenamePattern string
}

// Writer appends detection events to the active JSONL segment, one compact
// object per line, rotating by age and by size. Writes from concurrent
// callers serialize; a failed write is fatal to the caller, a failed seal of
// an old segment is not.
type Writer struct {
	policy Policy
	logger *zap.Logger

	mu       sync.Mutex
	file     *os.File
	path     string
	written  int64
	deadline time.Time
	closed   bool

	// now is swapped in tests to drive rotation deterministically.
	now func() time.Time
}

// NewWriter creates the events directory if needed and returns a Writer.
// No segment is opened until the first write.
func NewWriter(policy Policy, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(policy.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}
	return &Writer{
		policy: policy,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Write serializes the event and appends it to the active segment, rotating
// first if the rotation policy says so. Serialization failures and write
// failures are returned to the caller.
func (w *Writer) Write(event models.Event) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	line := append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.needsRotation() {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	n, err := w.file.Write(line)
	w.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// needsRotation is called with the lock held.
func (w *Writer) needsRotation() bool {
	if w.file == nil {
		return true
	}
	if w.policy.Interval > 0 && !w.now().Before(w.deadline) {
		return true
	}
	return w.policy.MaxBytes > 0 && w.written >= w.policy.MaxBytes
}

// rotate seals the active segment and opens a fresh one. Sealing errors are
// logged and swallowed; an open failure is returned and the next write
// retries. Called with the lock held.
func (w *Writer) rotate() error {
	if w.file != nil {
		w.seal()
	}

	now := w.now()
	path := filepath.Join(w.policy.Dir, now.Format(w.policy.FilenamePattern)+".jsonl")
	// Rotating twice inside one timestamp granule would reuse the name;
	// append to the existing segment instead of truncating it.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event segment: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat event segment: %w", err)
	}

	w.file = file
	w.path = path
	w.written = info.Size()
	w.deadline = now.Add(w.policy.Interval)
	w.logger.Info("opened event segment", zap.String("path", path))
	return nil
}

// seal flushes and closes the active segment. Errors here lose nothing the
// caller can act on, so they are logged only. Called with the lock held.
func (w *Writer) seal() {
	if err := w.file.Sync(); err != nil {
		w.logger.Warn("failed to sync event segment", zap.String("path", w.path), zap.Error(err))
	}
	if err := w.file.Close(); err != nil {
		w.logger.Warn("failed to close event segment", zap.String("path", w.path), zap.Error(err))
	}
	w.logger.Info("sealed event segment",
		zap.String("path", w.path),
		zap.Int64("bytes", w.written))
	w.file = nil
	w.written = 0
}

// CurrentSegment reports the active segment path and its size, or "" when
// no segment is open.
func (w *Writer) CurrentSegment() (string, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return "", 0
	}
	return w.path, w.written
}

// Close seals the active segment. Further writes return ErrClosed. Calling
// Close more than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file != nil {
		w.seal()
	}
	return nil
}
