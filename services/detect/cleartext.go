package detect

import (
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

// evaluateFTP flags USER/PASS commands. FTP has no TLS-upgrade exemption:
// the credentials already crossed the wire in the clear.
func (e *Engine) evaluateFTP(f *models.NetworkFrame) *models.Event {
	content := f.Layer("ftp").Concat(strings.ToUpper)
	if strings.Contains(content, "USER ") || strings.Contains(content, "PASS ") {
		event := models.NewFTPClearCreds(f.Time, f.Tuple())
		return &event
	}
	return nil
}

// evaluateTelnet flags login/password prompts in the session content.
func (e *Engine) evaluateTelnet(f *models.NetworkFrame) *models.Event {
	content := f.Layer("telnet").Concat(strings.ToLower)
	if strings.Contains(content, "login:") || strings.Contains(content, "password:") {
		event := models.NewTelnetClearLogin(f.Time, f.Tuple())
		return &event
	}
	return nil
}
