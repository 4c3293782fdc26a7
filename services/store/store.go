package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

// maxLineBytes matches the writer's upper bound on one serialized event.
const maxLineBytes = 4 * 1024 * 1024

// Store reads detection events back out of the JSONL segment directory.
// It holds no state between calls; every query re-lists the directory, so
// segments written after the store was created are always visible.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a Store over the given events directory. The directory
// does not need to exist yet; queries over a missing directory return
// empty results.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// segment pairs a path with its modification time for newest-first walks.
type segment struct {
	path  string
	mtime time.Time
}

// segments lists *.jsonl files newest-modified first.
func (s *Store) segments() ([]segment, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list event segments: %w", err)
	}

	segs := make([]segment, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Warn("failed to stat event segment", zap.String("path", path), zap.Error(err))
			continue
		}
		segs = append(segs, segment{path: path, mtime: info.ModTime()})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].mtime.After(segs[j].mtime) })
	return segs, nil
}

// Recent returns up to limit events, most recent first. Segments are walked
// newest first and each segment back to front, so the newest lines surface
// without reading the whole directory. Malformed lines are skipped.
func (s *Store) Recent(limit int) ([]models.Event, error) {
	if limit <= 0 {
		return []models.Event{}, nil
	}
	segs, err := s.segments()
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, limit)
	for _, seg := range segs {
		lines, err := readLines(seg.path)
		if err != nil {
			s.logger.Warn("failed to read event segment", zap.String("path", seg.path), zap.Error(err))
			continue
		}
		for i := len(lines) - 1; i >= 0; i-- {
			event, ok := s.decode(seg.path, lines[i])
			if !ok {
				continue
			}
			events = append(events, event)
			if len(events) == limit {
				return events, nil
			}
		}
	}
	return events, nil
}

// Window returns events from segments modified within the trailing window,
// presented oldest first, capped at maxLines. Segments are filled newest
// first, so when the cap truncates the window it is the oldest events that
// fall off, never the newest. A segment older than the cutoff ends the
// walk: everything behind it is older still. Individual event timestamps
// are not consulted, so a window may include slightly older events from a
// still-active segment.
func (s *Store) Window(window time.Duration, maxLines int) ([]models.Event, error) {
	segs, err := s.segments()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-window)

	// Newest segment first; groups keep per-segment chronological order so
	// the final result can be stitched back together oldest first.
	var groups [][]models.Event
	total := 0
	for _, seg := range segs {
		if seg.mtime.Before(cutoff) {
			break
		}
		lines, err := readLines(seg.path)
		if err != nil {
			s.logger.Warn("failed to read event segment", zap.String("path", seg.path), zap.Error(err))
			continue
		}
		group := make([]models.Event, 0, len(lines))
		for _, line := range lines {
			event, ok := s.decode(seg.path, line)
			if !ok {
				continue
			}
			group = append(group, event)
			if maxLines > 0 && total+len(group) == maxLines {
				break
			}
		}
		groups = append(groups, group)
		total += len(group)
		if maxLines > 0 && total == maxLines {
			break
		}
	}

	events := make([]models.Event, 0, total)
	for i := len(groups) - 1; i >= 0; i-- {
		events = append(events, groups[i]...)
	}
	return events, nil
}

func (s *Store) decode(path string, line []byte) (models.Event, bool) {
	var event models.Event
	if err := json.Unmarshal(line, &event); err != nil {
		s.logger.Debug("skipping malformed event line", zap.String("path", path), zap.Error(err))
		return models.Event{}, false
	}
	return event, true
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
