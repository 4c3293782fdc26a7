package models

import (
	"strings"
	"time"
)

// NetworkFrame is one normalized capture record: a wall-clock timestamp, a
// complete TCP 5-tuple, and the decoded protocol layers. Frames are
// transient; the ingestor builds one per captured packet and the rule engine
// consumes it exactly once.
type NetworkFrame struct {
	Time    time.Time
	SrcIP   string
	SrcPort int
	DstIP   string
	DstPort int
	Layers  map[string]Layer
}

// Tuple returns the frame's 5-tuple in event form.
func (f *NetworkFrame) Tuple() FiveTuple {
	return FiveTuple{SrcIP: f.SrcIP, SrcPort: f.SrcPort, DstIP: f.DstIP, DstPort: f.DstPort}
}

// Layer returns the named protocol layer, or nil if the frame does not
// carry it.
func (f *NetworkFrame) Layer(name string) Layer {
	return f.Layers[name]
}

// Layer is a narrow accessor over one protocol's decoded field mapping.
// Evaluators only read through these typed getters; the raw dissector
// structure never leaks past frame construction.
type Layer map[string]any

// Str returns the field as a string. List-valued fields yield their first
// string element.
func (l Layer) Str(key string) string {
	switch v := l[key].(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Strings returns every string value stored under key, flattening
// list-valued fields.
func (l Layer) Strings(key string) []string {
	switch v := l[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Sub returns a nested field mapping, such as the SMB header block.
func (l Layer) Sub(key string) Layer {
	if m, ok := l[key].(map[string]any); ok {
		return Layer(m)
	}
	return nil
}

// FieldEntry is one name/show pair from a dissector field list.
type FieldEntry struct {
	Name string
	Show string
}

// FieldList returns the dissector field entries stored under key. The HTTP
// layer stores its header fields this way.
func (l Layer) FieldList(key string) []FieldEntry {
	items, ok := l[key].([]any)
	if !ok {
		return nil
	}
	entries := make([]FieldEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := FieldEntry{}
		if s, ok := m["name"].(string); ok {
			entry.Name = s
		}
		if s, ok := m["show"].(string); ok {
			entry.Show = s
		}
		entries = append(entries, entry)
	}
	return entries
}

// Concat joins every string value in the layer (lists flattened) with
// newlines and applies the given case fold. The cleartext-protocol rules
// match against this normalized blob.
func (l Layer) Concat(fold func(string) string) string {
	var lines []string
	for _, v := range l {
		switch val := v.(type) {
		case string:
			lines = append(lines, val)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					lines = append(lines, s)
				}
			}
		}
	}
	joined := strings.Join(lines, "\n")
	if fold != nil {
		return fold(joined)
	}
	return joined
}
