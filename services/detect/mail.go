package detect

import (
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

// evaluateSMTP flags an AUTH attempt with no STARTTLS anywhere in the same
// exchange content.
func (e *Engine) evaluateSMTP(f *models.NetworkFrame) *models.Event {
	content := f.Layer("smtp").Concat(strings.ToUpper)
	if strings.Contains(content, "AUTH ") && !strings.Contains(content, "STARTTLS") {
		event := models.NewSMTPNoStartTLS(f.Time, f.Tuple())
		return &event
	}
	return nil
}

// evaluateMail covers POP3 and IMAP, which share one enable switch. POP3 is
// checked first.
func (e *Engine) evaluateMail(f *models.NetworkFrame) *models.Event {
	pop3 := f.Layer("pop")
	if pop3 == nil {
		pop3 = f.Layer("pop3")
	}
	if pop3 != nil {
		content := pop3.Concat(strings.ToUpper)
		if (strings.Contains(content, "USER ") || strings.Contains(content, "PASS ")) &&
			!strings.Contains(content, "STLS") {
			event := models.NewPOP3ClearCreds(f.Time, f.Tuple())
			return &event
		}
	}

	if imap := f.Layer("imap"); imap != nil {
		content := imap.Concat(strings.ToUpper)
		if strings.Contains(content, " LOGIN ") && !strings.Contains(content, "STARTTLS") {
			event := models.NewIMAPClearLogin(f.Time, f.Tuple())
			return &event
		}
	}
	return nil
}
