package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearwatch/clearwatch/app"
	"github.com/clearwatch/clearwatch/config"
	"github.com/clearwatch/clearwatch/models"
	"github.com/clearwatch/clearwatch/services/detect"
	"github.com/clearwatch/clearwatch/services/ingest"
	"github.com/clearwatch/clearwatch/services/llm"
	"github.com/clearwatch/clearwatch/services/monitor"
	"github.com/clearwatch/clearwatch/services/report"
	"github.com/clearwatch/clearwatch/services/sink"
	"github.com/clearwatch/clearwatch/services/store"
	"go.uber.org/zap"
)

func main() {
	reportOnce := flag.Bool("report", false, "generate a summary report from the recent event window and exit")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *reportOnce {
		if err := runReport(ctx, cfg, logger); err != nil {
			logger.Error("report generation failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := runWatch(ctx, cfg, logger); err != nil {
		logger.Error("monitor failed", zap.Error(err))
		os.Exit(1)
	}
}

// runWatch runs the capture pipeline until the stream ends or a signal
// arrives.
func runWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	writer, err := sink.NewWriter(sink.Policy{
		Dir:             cfg.Events.Dir,
		Interval:        cfg.Events.RotateInterval(),
		MaxBytes:        cfg.Events.RotateMaxBytes(),
		FilenamePattern: cfg.Events.FilenameFormat,
	}, logger)
	if err != nil {
		return err
	}
	defer writer.Close()

	source := ingest.NewTsharkSource(ingest.TsharkConfig{
		Path:      cfg.Detector.TsharkPath,
		Interface: cfg.Detector.Interface,
		BPF:       cfg.Detector.BPF,
	}, logger)

	engine := detect.NewEngine(detect.Config{
		Enabled: map[string]bool{
			"http":      cfg.Detector.Protocols.HTTP.Enabled,
			"smtp":      cfg.Detector.Protocols.SMTP.Enabled,
			"imap_pop3": cfg.Detector.Protocols.IMAPPOP3.Enabled,
			"ftp":       cfg.Detector.Protocols.FTP.Enabled,
			"telnet":    cfg.Detector.Protocols.Telnet.Enabled,
			"tls":       cfg.Detector.Protocols.TLS.Enabled,
			"dns":       cfg.Detector.Protocols.DNS.Enabled,
			"smb":       cfg.Detector.Protocols.SMB.Enabled,
		},
		CredentialKeys: cfg.Detector.Protocols.HTTP.CredentialKeys,
		MaxBodyBytes:   cfg.Detector.MaxBodyBytes(),
		TLSMinVersion:  cfg.Detector.Protocols.TLS.MinVersion,
		TLSRequireSNI:  cfg.Detector.Protocols.TLS.RequireSNI,
	}, logger)

	service := monitor.NewService(source,
		ingest.NewScanner(logger),
		detect.NewAllowlist(cfg.Detector.AllowlistCIDRs, logger),
		engine, writer, logger)
	service.OnEvent(func(event models.Event) {
		fmt.Println(monitor.RenderAlert(event))
	})

	logger.Info("starting capture",
		zap.String("interface", cfg.Detector.Interface),
		zap.String("events_dir", cfg.Events.Dir))

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runReport generates one summary report over the configured window.
func runReport(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	analyst := llm.NewOllamaClient(llm.OllamaConfig{
		Model:   cfg.Worker.Model,
		BaseURL: cfg.Worker.OllamaURL,
	}, logger)

	generator, err := report.NewGenerator(report.Config{
		Window:     time.Duration(cfg.Worker.WindowMinutes) * time.Minute,
		MaxLines:   cfg.Worker.MaxLinesPerWindow,
		ReportsDir: cfg.Worker.ReportsDir,
	}, store.NewStore(cfg.Events.Dir, logger), analyst, logger)
	if err != nil {
		return err
	}

	path, err := generator.Generate(ctx)
	if err != nil {
		if errors.Is(err, report.ErrNoEvents) {
			fmt.Println("No recent events found. Nothing to analyze.")
			return nil
		}
		return err
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
