package ingest

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// Source supplies the raw capture byte stream. The pipeline only needs an
// in-order stream with a defined end; whether it comes from a live process,
// a replayed fixture or a test harness is the source's business.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// TsharkConfig configures the live capture process.
type TsharkConfig struct {
	Path      string
	Interface string
	BPF       string
}

// TsharkSource runs tshark as the capture/dissection collaborator and
// exposes its JSON output stream. Cancelling the open context kills the
// process.
type TsharkSource struct {
	cfg    TsharkConfig
	logger *zap.Logger
}

// NewTsharkSource creates a TsharkSource.
func NewTsharkSource(cfg TsharkConfig, logger *zap.Logger) *TsharkSource {
	return &TsharkSource{cfg: cfg, logger: logger}
}

// Args returns the tshark invocation. TCP streams and HTTP bodies are
// desegmented so credential bodies arrive reassembled.
func (s *TsharkSource) Args() []string {
	args := []string{
		"-i", s.cfg.Interface,
		"-l",
		"-T", "json",
		"-Y", "tcp",
		"-n",
		"-o", "tcp.desegment_tcp_streams:true",
		"-o", "http.desegment_body:true",
		"-o", "http.tls.port:443",
	}
	if s.cfg.BPF != "" {
		args = append(args, "-f", s.cfg.BPF)
	}
	return args
}

// Open starts the capture process and returns its stdout. Closing the
// returned stream terminates the process best-effort and reaps it.
func (s *TsharkSource) Open(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Path, s.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get tshark stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tshark: %w", err)
	}

	s.logger.Info("tshark capture started",
		zap.String("path", s.cfg.Path),
		zap.String("interface", s.cfg.Interface),
		zap.Int("pid", cmd.Process.Pid))

	return &processStream{ReadCloser: stdout, cmd: cmd, logger: s.logger}, nil
}

type processStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	logger *zap.Logger
}

// Close terminates the capture process. Kill errors are logged, not
// returned; a process that already exited is not a failure.
func (p *processStream) Close() error {
	_ = p.ReadCloser.Close()
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			p.logger.Debug("tshark kill", zap.Error(err))
		}
	}
	_ = p.cmd.Wait()
	p.logger.Info("tshark capture terminated")
	return nil
}
