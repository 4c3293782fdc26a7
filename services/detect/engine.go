package detect

import (
	"strconv"
	"strings"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

// Config holds the rule-engine tunables resolved from configuration.
type Config struct {
	// Enabled switches evaluators on by protocol key: http, smtp,
	// imap_pop3, ftp, telnet, tls, dns, smb.
	Enabled map[string]bool

	CredentialKeys []string
	MaxBodyBytes   int
	TLSMinVersion  string
	TLSRequireSNI  bool
}

// evaluator binds one protocol rule set to the frame layers that activate
// it. Evaluators run in declaration order; the first non-nil event wins.
type evaluator struct {
	protocol string
	layers   []string
	evaluate func(f *models.NetworkFrame) *models.Event
}

// Engine evaluates frames against the protocol rule sets in a fixed
// priority order: HTTP, SMTP, POP3/IMAP, FTP, TELNET, TLS, DNS, SMB. A
// frame yields at most one event.
type Engine struct {
	evaluators     []evaluator
	enabled        map[string]bool
	credentialKeys map[string]struct{}
	maxBodyBytes   int
	tlsMinVersion  float64
	tlsMinRaw      string
	requireSNI     bool
	logger         *zap.Logger
}

// NewEngine builds the evaluator chain. An unparsable TLS minimum version
// disables the version check but keeps the evaluator alive for SNI.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	e := &Engine{
		enabled:        cfg.Enabled,
		credentialKeys: make(map[string]struct{}, len(cfg.CredentialKeys)),
		maxBodyBytes:   cfg.MaxBodyBytes,
		tlsMinRaw:      cfg.TLSMinVersion,
		requireSNI:     cfg.TLSRequireSNI,
		logger:         logger,
	}
	for _, key := range cfg.CredentialKeys {
		e.credentialKeys[strings.ToLower(key)] = struct{}{}
	}
	if cfg.TLSMinVersion != "" {
		min, err := strconv.ParseFloat(cfg.TLSMinVersion, 64)
		if err != nil {
			logger.Warn("unparsable TLS minimum version, version check disabled",
				zap.String("min_version", cfg.TLSMinVersion))
		} else {
			e.tlsMinVersion = min
		}
	}

	e.evaluators = []evaluator{
		{protocol: "http", layers: []string{"http"}, evaluate: e.evaluateHTTP},
		{protocol: "smtp", layers: []string{"smtp"}, evaluate: e.evaluateSMTP},
		{protocol: "imap_pop3", layers: []string{"pop", "pop3", "imap"}, evaluate: e.evaluateMail},
		{protocol: "ftp", layers: []string{"ftp"}, evaluate: e.evaluateFTP},
		{protocol: "telnet", layers: []string{"telnet"}, evaluate: e.evaluateTelnet},
		{protocol: "tls", layers: []string{"tls"}, evaluate: e.evaluateTLS},
		{protocol: "dns", layers: []string{"dns"}, evaluate: e.evaluateDNS},
		{protocol: "smb", layers: []string{"smb"}, evaluate: e.evaluateSMB},
	}
	return e
}

// Evaluate runs the frame through the evaluator chain and returns the first
// matching event, or nil. Evaluation stops at the first match; later
// evaluators never run for that frame even when their layer is present.
func (e *Engine) Evaluate(f *models.NetworkFrame) *models.Event {
	for _, ev := range e.evaluators {
		if !e.enabled[ev.protocol] {
			continue
		}
		present := false
		for _, name := range ev.layers {
			if f.Layer(name) != nil {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		if event := ev.evaluate(f); event != nil {
			return event
		}
	}
	return nil
}
