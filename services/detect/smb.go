package detect

import (
	"strconv"
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

const (
	smbCmdSessionSetup = "0x73"

	smbFlagsResponseBit   = 0x80
	smbFlags2SecuritySigs = 0x0004
)

// Read AndX, Write AndX, Open AndX, Close
var smbFileCommands = map[string]struct{}{
	"0x2e": {}, "0x2f": {}, "0x0a": {}, "0x0c": {},
}

var smbSensitiveKeywords = []string{
	"passwd", "shadow", "config", "secret", "key", "credential",
	"admin", "root", "system", "backup", "dump",
}

// evaluateSMB runs the staged SMB checks: plaintext authentication, then
// missing security signatures, then sensitive file access.
func (e *Engine) evaluateSMB(f *models.NetworkFrame) *models.Event {
	layer := f.Layer("smb")
	header := layer.Sub("SMB Header")
	if header == nil {
		header = models.Layer{}
	}
	command := header.Str("smb.cmd")
	payload := strings.Join(layer.Strings("smb.data"), " ")

	if smbPlaintextAuth(header, command, payload) {
		event := models.NewSMBEvent(f.Time, models.SeverityHigh, "smb.plaintext_auth", f.Tuple(),
			"Plaintext SMB authentication detected", smbCommandOrUnknown(command),
			[]string{"smb", "authentication", "plaintext"})
		return &event
	}
	if smbWeakEncryption(header) {
		event := models.NewSMBEvent(f.Time, models.SeverityMed, "smb.weak_encryption", f.Tuple(),
			"SMB without security signatures detected", smbCommandOrUnknown(command),
			[]string{"smb", "encryption", "security"})
		return &event
	}
	if smbSuspiciousActivity(command, payload) {
		event := models.NewSMBEvent(f.Time, models.SeverityMed, "smb.suspicious_activity", f.Tuple(),
			"Suspicious SMB file access detected", smbCommandOrUnknown(command),
			[]string{"smb", "suspicious", "file_access"})
		return &event
	}
	return nil
}

func smbPlaintextAuth(header models.Layer, command, payload string) bool {
	if command != smbCmdSessionSetup {
		return false
	}
	flags := parseHexFlags(header.Str("smb.flags"))
	if flags&smbFlagsResponseBit == 0 {
		return false
	}
	upper := strings.ToUpper(payload)
	return strings.Contains(upper, "NTLM") || strings.Contains(upper, "NEGOTIATE")
}

func smbWeakEncryption(header models.Layer) bool {
	flags2 := parseHexFlags(header.Str("smb.flags2"))
	return flags2&smbFlags2SecuritySigs == 0
}

func smbSuspiciousActivity(command, payload string) bool {
	if _, ok := smbFileCommands[command]; !ok {
		return false
	}
	lower := strings.ToLower(payload)
	for _, keyword := range smbSensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func parseHexFlags(raw string) uint64 {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return value
}

func smbCommandOrUnknown(command string) string {
	if command == "" {
		return "unknown"
	}
	return command
}
