package app

import (
	"strings"

	"github.com/charlesng35/estateportal/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation. The
// sender falls back to the SMTP username when no from address is set.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	from := strings.TrimSpace(c.SMTP.From)
	if from == "" {
		from = strings.TrimSpace(c.SMTP.Username)
	}
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: strings.TrimSpace(c.SMTP.Username),
		Password: c.SMTP.Password,
		From:     from,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}
