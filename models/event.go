package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Severity classifies how urgent a security event is.
type Severity string

const (
	SeverityLow  Severity = "LOW"
	SeverityMed  Severity = "MED"
	SeverityHigh Severity = "HIGH"
)

// Event is an immutable security finding produced by exactly one rule
// evaluator. It is persisted verbatim as one JSON line; the field set below
// is the stable on-disk contract consumed by the query API and the report
// worker.
type Event struct {
	Timestamp     time.Time         `json:"ts" validate:"required"`
	Severity      Severity          `json:"severity" validate:"required,oneof=LOW MED HIGH"`
	Rule          string            `json:"rule" validate:"required"`
	SrcIP         string            `json:"src_ip" validate:"required,ip"`
	SrcPort       int               `json:"src_port" validate:"gte=1,lte=65535"`
	DstIP         string            `json:"dst_ip" validate:"required,ip"`
	DstPort       int               `json:"dst_port" validate:"gte=1,lte=65535"`
	Host          string            `json:"host,omitempty"`
	Context       map[string]string `json:"context"`
	SnippetSHA256 string            `json:"snippet_sha256,omitempty"`
	Tags          []string          `json:"tags"`
}

// MarshalJSON renders the timestamp as RFC3339 in UTC with a literal Z
// suffix, which downstream tools rely on.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		Timestamp string `json:"ts"`
	}{
		alias:     alias(e),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts both second and sub-second RFC3339 timestamps.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := struct {
		*alias
		Timestamp string `json:"ts"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts.UTC()
	return nil
}

// SnippetHash returns the sha-256 hex digest of at most the first 256 bytes
// of body. Raw credential content is never stored, only this digest.
func SnippetHash(body string) string {
	b := []byte(body)
	if len(b) > 256 {
		b = b[:256]
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FiveTuple identifies one TCP conversation direction.
type FiveTuple struct {
	SrcIP   string
	SrcPort int
	DstIP   string
	DstPort int
}

func newEvent(ts time.Time, severity Severity, rule string, tuple FiveTuple, context map[string]string) Event {
	if context == nil {
		context = map[string]string{}
	}
	return Event{
		Timestamp: ts.UTC(),
		Severity:  severity,
		Rule:      rule,
		SrcIP:     tuple.SrcIP,
		SrcPort:   tuple.SrcPort,
		DstIP:     tuple.DstIP,
		DstPort:   tuple.DstPort,
		Context:   context,
		Tags:      []string{},
	}
}

// NewHTTPBasicAuth flags a cleartext HTTP Basic Authorization header.
func NewHTTPBasicAuth(ts time.Time, tuple FiveTuple, host string) Event {
	e := newEvent(ts, SeverityHigh, "http.basic_auth", tuple, map[string]string{"protocol": "HTTP"})
	e.Host = host
	return e
}

// NewHTTPCredentialKey flags credential-shaped keys found in an HTTP body.
// The body itself is reduced to a bounded-prefix hash.
func NewHTTPCredentialKey(ts time.Time, tuple FiveTuple, host string, keys []string, bodySnippet string) Event {
	e := newEvent(ts, SeverityMed, "http.credential_key", tuple, map[string]string{
		"protocol": "HTTP",
		"keys":     strings.Join(keys, ","),
	})
	e.Host = host
	if bodySnippet != "" {
		e.SnippetSHA256 = SnippetHash(bodySnippet)
	}
	return e
}

// NewSMTPNoStartTLS flags SMTP AUTH attempted without STARTTLS.
func NewSMTPNoStartTLS(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityHigh, "smtp.no_starttls", tuple, map[string]string{
		"protocol": "SMTP",
		"phase":    "AUTH",
		"pre_tls":  "true",
	})
}

// NewPOP3ClearCreds flags POP3 USER/PASS without STLS.
func NewPOP3ClearCreds(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityHigh, "pop3.clear_creds", tuple, map[string]string{"protocol": "POP3"})
}

// NewIMAPClearLogin flags IMAP LOGIN without STARTTLS.
func NewIMAPClearLogin(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityHigh, "imap.clear_login", tuple, map[string]string{"protocol": "IMAP"})
}

// NewFTPClearCreds flags FTP USER/PASS, which are always cleartext.
func NewFTPClearCreds(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityHigh, "ftp.clear_creds", tuple, map[string]string{"protocol": "FTP"})
}

// NewTelnetClearLogin flags telnet login/password prompts.
func NewTelnetClearLogin(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityHigh, "telnet.clear_login", tuple, map[string]string{"protocol": "TELNET"})
}

// NewTLSWeakVersion flags a ClientHello below the configured minimum version.
func NewTLSWeakVersion(ts time.Time, tuple FiveTuple, detected, required string) Event {
	return newEvent(ts, SeverityMed, "tls.weak_version", tuple, map[string]string{
		"protocol":         "TLS",
		"version_detected": detected,
		"minimum_required": required,
	})
}

// NewTLSMissingSNI flags a ClientHello without a server name extension.
func NewTLSMissingSNI(ts time.Time, tuple FiveTuple) Event {
	return newEvent(ts, SeverityLow, "tls.missing_sni", tuple, map[string]string{"protocol": "TLS"})
}

// NewDNSEvent builds one of the dns.* findings with query details in context.
func NewDNSEvent(ts time.Time, severity Severity, rule string, tuple FiveTuple, description, queryName, queryType string, tags []string) Event {
	e := newEvent(ts, severity, rule, tuple, map[string]string{
		"protocol":    "DNS",
		"description": description,
		"query_name":  queryName,
		"query_type":  queryType,
	})
	e.Tags = tags
	return e
}

// NewSMBEvent builds one of the smb.* findings with the SMB command in context.
func NewSMBEvent(ts time.Time, severity Severity, rule string, tuple FiveTuple, description, command string, tags []string) Event {
	e := newEvent(ts, severity, rule, tuple, map[string]string{
		"protocol":    "SMB",
		"description": description,
		"smb_cmd":     command,
	})
	e.Tags = tags
	return e
}
