package detect

import (
	"testing"

	"github.com/clearwatch/clearwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smbFrame(header models.Layer, data any) *models.NetworkFrame {
	layer := models.Layer{"SMB Header": map[string]any(header)}
	if data != nil {
		layer["smb.data"] = data
	}
	return frameWith(map[string]models.Layer{"smb": layer})
}

func TestSMBPlaintextAuth(t *testing.T) {
	engine := testEngine(t)
	frame := smbFrame(models.Layer{
		"smb.cmd":    "0x73",
		"smb.flags":  "0x98", // response bit set
		"smb.flags2": "0x0004",
	}, []any{"NTLMSSP NEGOTIATE"})

	event := engine.Evaluate(frame)
	require.NotNil(t, event)
	assert.Equal(t, "smb.plaintext_auth", event.Rule)
	assert.Equal(t, models.SeverityHigh, event.Severity)
	assert.Equal(t, "0x73", event.Context["smb_cmd"])
}

func TestSMBSessionSetupRequestNotFlaggedAsAuth(t *testing.T) {
	engine := testEngine(t)
	// Request (response bit clear) with signing enabled: weak-encryption and
	// plaintext-auth both stay quiet.
	frame := smbFrame(models.Layer{
		"smb.cmd":    "0x73",
		"smb.flags":  "0x18",
		"smb.flags2": "0x0004",
	}, []any{"NTLMSSP NEGOTIATE"})

	assert.Nil(t, engine.Evaluate(frame))
}

func TestSMBWeakEncryption(t *testing.T) {
	engine := testEngine(t)
	frame := smbFrame(models.Layer{
		"smb.cmd":    "0x75",
		"smb.flags":  "0x18",
		"smb.flags2": "0xc001", // security signatures not required
	}, nil)

	event := engine.Evaluate(frame)
	require.NotNil(t, event)
	assert.Equal(t, "smb.weak_encryption", event.Rule)
	assert.Equal(t, models.SeverityMed, event.Severity)
}

func TestSMBSuspiciousFileAccess(t *testing.T) {
	engine := testEngine(t)
	frame := smbFrame(models.Layer{
		"smb.cmd":    "0x2e", // Read AndX
		"smb.flags2": "0x0004",
	}, []any{`\\server\share\etc\shadow`})

	event := engine.Evaluate(frame)
	require.NotNil(t, event)
	assert.Equal(t, "smb.suspicious_activity", event.Rule)
	assert.Equal(t, []string{"smb", "suspicious", "file_access"}, event.Tags)
}

func TestSMBOrdinaryTrafficIgnored(t *testing.T) {
	engine := testEngine(t)
	frame := smbFrame(models.Layer{
		"smb.cmd":    "0x2e",
		"smb.flags2": "0x0004",
	}, []any{`\\server\share\public\readme.txt`})

	assert.Nil(t, engine.Evaluate(frame))
}
