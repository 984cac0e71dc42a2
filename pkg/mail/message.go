package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// InviteContent carries the values rendered into a portal invitation email.
type InviteContent struct {
	Email       string
	Code        string
	InviteType  string
	ProjectName string
	ExpiresAt   time.Time
	PortalURL   string
}

// InviteMessage renders the plain-text invitation containing the one-time code.
func InviteMessage(content InviteContent) Message {
	var b strings.Builder
	b.WriteString("You have been invited to the partner portal")
	if content.ProjectName != "" {
		fmt.Fprintf(&b, " for %s", content.ProjectName)
	}
	b.WriteString(".\r\n\r\n")
	fmt.Fprintf(&b, "Your activation code: %s\r\n", content.Code)
	if !content.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "The code expires on %s.\r\n", content.ExpiresAt.UTC().Format(time.RFC1123))
	}
	if content.PortalURL != "" {
		fmt.Fprintf(&b, "\r\nActivate your account at %s\r\n", content.PortalURL)
	}

	subject := "Your portal invitation"
	if content.InviteType == "agent" {
		subject = "Your agency portal invitation"
	}

	return Message{
		To:      []string{content.Email},
		Subject: subject,
		Body:    b.String(),
	}
}

func validateAddresses(from string, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("smtp: at least one recipient is required")
	}
	if from == "" {
		return errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return fmt.Errorf("smtp: invalid from address: %w", err)
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func formatMessage(from string, to []string, subject, body string, now time.Time) string {
	headers := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + escapeHeader(subject),
		"Date: " + now.UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
	}
	return strings.Join(headers, "\r\n") + "\r\n" + body
}

func escapeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
