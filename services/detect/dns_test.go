package detect

import (
	"strings"
	"testing"

	"github.com/clearwatch/clearwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dnsFrame(queryName, queryType string) *models.NetworkFrame {
	return frameWith(map[string]models.Layer{
		"dns": {
			"dns.qry.name": queryName,
			"dns.qry.type": queryType,
		},
	})
}

func TestDNSTunnelingLongName(t *testing.T) {
	engine := testEngine(t)
	name := strings.Repeat("x", 30) + ".payload." + strings.Repeat("y", 30) + ".evil.example"
	event := engine.Evaluate(dnsFrame(name, "A"))
	require.NotNil(t, event)
	assert.Equal(t, "dns.tunneling", event.Rule)
	assert.Equal(t, models.SeverityHigh, event.Severity)
	assert.Equal(t, []string{"dns", "tunneling", "exfiltration"}, event.Tags)
	assert.Equal(t, name, event.Context["query_name"])
}

func TestDNSTunnelingExplicitMarker(t *testing.T) {
	engine := testEngine(t)
	event := engine.Evaluate(dnsFrame("tunnel.evil.example", "A"))
	require.NotNil(t, event)
	assert.Equal(t, "dns.tunneling", event.Rule)
}

func TestDNSSuspiciousKeyword(t *testing.T) {
	engine := testEngine(t)
	event := engine.Evaluate(dnsFrame("botnet.example", "A"))
	require.NotNil(t, event)
	assert.Equal(t, "dns.suspicious_query", event.Rule)
	assert.Equal(t, models.SeverityMed, event.Severity)
}

func TestDNSSuspiciousDeepSubdomains(t *testing.T) {
	engine := testEngine(t)
	event := engine.Evaluate(dnsFrame("a.b.c.d.e.f.example", "A"))
	require.NotNil(t, event)
	assert.Equal(t, "dns.suspicious_query", event.Rule)
}

func TestDNSExfiltrationSuspiciousTLD(t *testing.T) {
	engine := testEngine(t)
	event := engine.Evaluate(dnsFrame("files.example.tk", "A"))
	require.NotNil(t, event)
	assert.Equal(t, "dns.data_exfiltration", event.Rule)
	assert.Equal(t, models.SeverityHigh, event.Severity)
}

func TestDNSBenignQuery(t *testing.T) {
	engine := testEngine(t)
	assert.Nil(t, engine.Evaluate(dnsFrame("www.example.com", "A")))
}

func TestDNSDisabled(t *testing.T) {
	enabled := allEnabled()
	enabled["dns"] = false
	engine := NewEngine(Config{Enabled: enabled}, zap.NewNop())
	assert.Nil(t, engine.Evaluate(dnsFrame("tunnel.evil.example", "A")))
}
