package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

// Scanner turns the raw capture byte stream into an in-order sequence of
// normalized frames. The stream is line oriented, but a single line may
// carry several JSON objects back to back; the scanner splits and parses
// each independently. Nothing the stream does short of ending terminates
// the sequence.
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a Scanner.
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// maxLineBytes bounds one capture line; desegmented HTTP bodies can get big.
const maxLineBytes = 4 * 1024 * 1024

// Frames consumes r until EOF or context cancellation and emits frames in
// arrival order on the returned channel. The channel is closed when the
// stream ends. Malformed objects are skipped; objects missing a timestamp,
// IP layer, TCP layer or any 5-tuple element are dropped silently.
func (s *Scanner) Frames(ctx context.Context, r io.Reader) <-chan models.NetworkFrame {
	out := make(chan models.NetworkFrame)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			for _, packet := range s.decodeLine(line) {
				frame, ok := buildFrame(packet)
				if !ok {
					continue
				}
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			s.logger.Debug("capture stream ended with error", zap.Error(err))
		}
	}()

	return out
}

// decodeLine parses every top-level JSON value on one line. Concatenated
// objects ("}{" with no separator) decode as successive values; a line
// holding a JSON array is flattened into its packet objects.
func (s *Scanner) decodeLine(line string) []map[string]any {
	var packets []map[string]any
	dec := json.NewDecoder(strings.NewReader(line))
	for {
		var value any
		if err := dec.Decode(&value); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("skipping malformed capture line", zap.Error(err))
			}
			return packets
		}
		switch v := value.(type) {
		case map[string]any:
			packets = append(packets, v)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					packets = append(packets, obj)
				}
			}
		}
	}
}

// buildFrame normalizes one dissected packet. The layer variants are decided
// here, once; evaluators never see the raw structure.
func buildFrame(packet map[string]any) (models.NetworkFrame, bool) {
	source, _ := packet["_source"].(map[string]any)
	rawLayers, _ := source["layers"].(map[string]any)
	if rawLayers == nil {
		return models.NetworkFrame{}, false
	}

	layers := make(map[string]models.Layer, len(rawLayers))
	for name, value := range rawLayers {
		if m, ok := value.(map[string]any); ok {
			layers[name] = models.Layer(m)
		}
	}

	ts, ok := frameTime(layers["frame"])
	if !ok {
		return models.NetworkFrame{}, false
	}

	ipLayer := layers["ip"]
	srcKey, dstKey := "ip.src", "ip.dst"
	if ipLayer == nil {
		ipLayer = layers["ipv6"]
		srcKey, dstKey = "ipv6.src", "ipv6.dst"
	}
	tcpLayer := layers["tcp"]
	if ipLayer == nil || tcpLayer == nil {
		return models.NetworkFrame{}, false
	}

	srcIP := ipLayer.Str(srcKey)
	dstIP := ipLayer.Str(dstKey)
	srcPort := parsePort(tcpLayer.Str("tcp.srcport"))
	dstPort := parsePort(tcpLayer.Str("tcp.dstport"))
	if srcIP == "" || dstIP == "" || srcPort == 0 || dstPort == 0 {
		return models.NetworkFrame{}, false
	}

	return models.NetworkFrame{
		Time:    ts,
		SrcIP:   srcIP,
		SrcPort: srcPort,
		DstIP:   dstIP,
		DstPort: dstPort,
		Layers:  layers,
	}, true
}

// frameTime resolves the wall-clock timestamp from the capture epoch.
func frameTime(frame models.Layer) (time.Time, bool) {
	if frame == nil {
		return time.Time{}, false
	}
	raw := frame.Str("frame.time_epoch")
	if raw == "" {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, false
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

func parsePort(raw string) int {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0
	}
	return port
}
