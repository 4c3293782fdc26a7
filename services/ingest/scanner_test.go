package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func packetJSON(srcIP string, srcPort int, dstIP string, dstPort int) string {
	return fmt.Sprintf(`{"_source":{"layers":{`+
		`"frame":{"frame.time_epoch":"1741942013.250000000"},`+
		`"ip":{"ip.src":"%s","ip.dst":"%s"},`+
		`"tcp":{"tcp.srcport":"%d","tcp.dstport":"%d"},`+
		`"ftp":{"ftp.request.command":"USER alice"}}}}`,
		srcIP, dstIP, srcPort, dstPort)
}

func collect(t *testing.T, input string) []models.NetworkFrame {
	t.Helper()
	scanner := NewScanner(zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frames []models.NetworkFrame
	for frame := range scanner.Frames(ctx, strings.NewReader(input)) {
		frames = append(frames, frame)
	}
	return frames
}

func TestFramesPreserveArrivalOrder(t *testing.T) {
	input := packetJSON("10.0.0.1", 1111, "198.51.100.1", 80) + "\n" +
		packetJSON("10.0.0.2", 2222, "198.51.100.2", 21) + "\n"

	frames := collect(t, input)
	require.Len(t, frames, 2)
	assert.Equal(t, "10.0.0.1", frames[0].SrcIP)
	assert.Equal(t, "10.0.0.2", frames[1].SrcIP)
	assert.Equal(t, 80, frames[0].DstPort)
	assert.NotNil(t, frames[0].Layer("ftp"))
}

func TestFramesTimestampFromCaptureEpoch(t *testing.T) {
	frames := collect(t, packetJSON("10.0.0.1", 1111, "198.51.100.1", 80))
	require.Len(t, frames, 1)
	assert.Equal(t, time.Date(2025, 3, 14, 8, 46, 53, 250000000, time.UTC), frames[0].Time)
}

func TestFramesSplitConcatenatedObjects(t *testing.T) {
	// Two objects back to back on one line, no separator.
	input := packetJSON("10.0.0.1", 1111, "198.51.100.1", 80) +
		packetJSON("10.0.0.2", 2222, "198.51.100.2", 21) + "\n"

	frames := collect(t, input)
	require.Len(t, frames, 2)
	assert.Equal(t, "10.0.0.1", frames[0].SrcIP)
	assert.Equal(t, "10.0.0.2", frames[1].SrcIP)
}

func TestFramesArrayLineFlattened(t *testing.T) {
	input := "[" + packetJSON("10.0.0.1", 1111, "198.51.100.1", 80) + "," +
		packetJSON("10.0.0.2", 2222, "198.51.100.2", 21) + "]\n"

	frames := collect(t, input)
	require.Len(t, frames, 2)
}

func TestFramesSkipMalformedLines(t *testing.T) {
	input := "this is not json\n" +
		`{"broken":` + "\n" +
		packetJSON("10.0.0.1", 1111, "198.51.100.1", 80) + "\n"

	frames := collect(t, input)
	require.Len(t, frames, 1, "malformed lines must not terminate the sequence")
	assert.Equal(t, "10.0.0.1", frames[0].SrcIP)
}

func TestFramesDropIncompletePackets(t *testing.T) {
	noTCP := `{"_source":{"layers":{` +
		`"frame":{"frame.time_epoch":"1741942013"},` +
		`"ip":{"ip.src":"10.0.0.1","ip.dst":"198.51.100.1"}}}}`
	noTimestamp := `{"_source":{"layers":{` +
		`"ip":{"ip.src":"10.0.0.1","ip.dst":"198.51.100.1"},` +
		`"tcp":{"tcp.srcport":"1111","tcp.dstport":"80"}}}}`
	badPort := `{"_source":{"layers":{` +
		`"frame":{"frame.time_epoch":"1741942013"},` +
		`"ip":{"ip.src":"10.0.0.1","ip.dst":"198.51.100.1"},` +
		`"tcp":{"tcp.srcport":"0","tcp.dstport":"80"}}}}`
	noLayers := `{"_source":{}}`

	input := strings.Join([]string{noTCP, noTimestamp, badPort, noLayers,
		packetJSON("10.0.0.9", 999, "198.51.100.1", 80)}, "\n")

	frames := collect(t, input)
	require.Len(t, frames, 1)
	assert.Equal(t, "10.0.0.9", frames[0].SrcIP)
}

func TestFramesIPv6(t *testing.T) {
	input := `{"_source":{"layers":{` +
		`"frame":{"frame.time_epoch":"1741942013"},` +
		`"ipv6":{"ipv6.src":"2001:db8::1","ipv6.dst":"2001:db8::2"},` +
		`"tcp":{"tcp.srcport":"4444","tcp.dstport":"25"}}}}`

	frames := collect(t, input)
	require.Len(t, frames, 1)
	assert.Equal(t, "2001:db8::1", frames[0].SrcIP)
	assert.Equal(t, "2001:db8::2", frames[0].DstIP)
}

func TestFramesCancelledContextStopsSequence(t *testing.T) {
	scanner := NewScanner(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	stream := newBlockingStream(packetJSON("10.0.0.1", 1111, "198.51.100.1", 80) + "\n")

	frames := scanner.Frames(ctx, stream)
	first, ok := <-frames
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", first.SrcIP)

	cancel()
	stream.push(packetJSON("10.0.0.2", 2222, "198.51.100.2", 80) + "\n")
	stream.close()

	// The channel must drain and close promptly once cancelled.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, open := <-frames:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("frame channel did not close after cancellation")
		}
	}
}

// blockingStream feeds the scanner incrementally so cancellation can be
// observed mid-stream.
type blockingStream struct {
	ch chan []byte
	// current unread chunk
	buf []byte
}

func newBlockingStream(initial string) *blockingStream {
	s := &blockingStream{ch: make(chan []byte, 16)}
	s.ch <- []byte(initial)
	return s
}

func (s *blockingStream) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		chunk, ok := <-s.ch
		if !ok {
			return 0, fmt.Errorf("stream closed")
		}
		s.buf = chunk
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *blockingStream) push(data string) {
	s.ch <- []byte(data)
}

func (s *blockingStream) close() {
	close(s.ch)
}

func TestTsharkArgs(t *testing.T) {
	source := NewTsharkSource(TsharkConfig{
		Path:      "/usr/bin/tshark",
		Interface: "eth0",
		BPF:       "port not 22",
	}, zap.NewNop())

	args := source.Args()
	assert.Contains(t, strings.Join(args, " "), "-i eth0")
	assert.Contains(t, strings.Join(args, " "), "-T json")
	assert.Contains(t, strings.Join(args, " "), "-f port not 22")

	noBPF := NewTsharkSource(TsharkConfig{Path: "tshark", Interface: "eth0"}, zap.NewNop())
	assert.NotContains(t, noBPF.Args(), "-f")
}
