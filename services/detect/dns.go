package detect

import (
	"regexp"
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

var (
	dnsBase64Run   = regexp.MustCompile(`[A-Za-z0-9+/]{20,}={0,2}`)
	dnsLongLabel   = regexp.MustCompile(`(?i)[a-z0-9]{20,}\.`)
	dnsBase64Label = regexp.MustCompile(`[A-Za-z0-9+/]{10,}\.`)
	dnsTunnelMark  = regexp.MustCompile(`(?i)(tunnel|exfil)\.`)
	dnsExfilB64    = regexp.MustCompile(`[A-Za-z0-9+/]{16,}={0,2}`)
	dnsExfilHex    = regexp.MustCompile(`[0-9a-fA-F]{16,}`)
)

var dnsSuspiciousKeywords = []string{
	"malware", "virus", "trojan", "backdoor", "keylogger",
	"botnet", "c2", "command", "control", "exfil",
	"tunnel", "bypass", "proxy", "anonymizer",
}

var dnsSuspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf"}

// evaluateDNS runs the staged DNS heuristics: tunneling first, then
// suspicious queries, then the exfiltration patterns.
func (e *Engine) evaluateDNS(f *models.NetworkFrame) *models.Event {
	layer := f.Layer("dns")
	queryName := layer.Str("dns.qry.name")
	queryType := layer.Str("dns.qry.type")

	if dnsTunneling(queryName) {
		event := models.NewDNSEvent(f.Time, models.SeverityHigh, "dns.tunneling", f.Tuple(),
			"Potential DNS tunneling detected", queryName, queryType,
			[]string{"dns", "tunneling", "exfiltration"})
		return &event
	}
	if dnsSuspiciousQuery(queryName, queryType) {
		event := models.NewDNSEvent(f.Time, models.SeverityMed, "dns.suspicious_query", f.Tuple(),
			"Suspicious DNS query detected", queryName, queryType,
			[]string{"dns", "suspicious", "malware"})
		return &event
	}
	if dnsDataExfiltration(queryName) {
		event := models.NewDNSEvent(f.Time, models.SeverityHigh, "dns.data_exfiltration", f.Tuple(),
			"Potential data exfiltration via DNS", queryName, queryType,
			[]string{"dns", "exfiltration", "data_leak"})
		return &event
	}
	return nil
}

func dnsTunneling(queryName string) bool {
	if len(queryName) > 50 {
		return true
	}
	if dnsBase64Run.MatchString(queryName) {
		return true
	}
	return dnsLongLabel.MatchString(queryName) ||
		dnsBase64Label.MatchString(queryName) ||
		dnsTunnelMark.MatchString(queryName)
}

func dnsSuspiciousQuery(queryName, queryType string) bool {
	lower := strings.ToLower(queryName)
	for _, keyword := range dnsSuspiciousKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	// TXT, CNAME and MX lookups with long names can carry encoded payloads
	switch queryType {
	case "TXT", "CNAME", "MX":
		if len(queryName) > 30 {
			return true
		}
	}
	return strings.Count(lower, ".") > 5
}

func dnsDataExfiltration(queryName string) bool {
	if dnsExfilB64.MatchString(queryName) || dnsExfilHex.MatchString(queryName) {
		return true
	}
	for _, tld := range dnsSuspiciousTLDs {
		if strings.HasSuffix(queryName, tld) {
			return true
		}
	}
	return false
}
