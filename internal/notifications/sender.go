package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/mentorhub/pkg/mail"
)

// Envelope is one outbound templated email.
type Envelope struct {
	ToAddress string
	Template  TemplateKind
	Payload   Payload
}

// EmailSender renders envelopes and hands them to a mail.Mailer.
type EmailSender struct {
	mailer  mail.Mailer
	appName string
}

// NewEmailSender constructs an EmailSender. appName is shown in every email footer.
func NewEmailSender(mailer mail.Mailer, appName string) (*EmailSender, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	if strings.TrimSpace(appName) == "" {
		appName = "MentorHub"
	}
	return &EmailSender{mailer: mailer, appName: appName}, nil
}

// Send renders and delivers env. mail.ErrSMTPDisabled is returned unchanged so callers can
// tell a disabled mailer from a failed delivery.
func (s *EmailSender) Send(ctx context.Context, env Envelope) error {
	to := strings.TrimSpace(env.ToAddress)
	if to == "" {
		return errors.New("notifications: recipient address is required")
	}

	payload := env.Payload
	if payload.AppName == "" {
		payload.AppName = s.appName
	}

	rendered, err := Render(env.Template, payload)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, mail.Message{
		To:       []string{to},
		Subject:  rendered.Subject,
		Body:     rendered.Text,
		HTMLBody: rendered.HTML,
	}); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return err
		}
		return fmt.Errorf("notifications: send %s: %w", env.Template, err)
	}
	return nil
}
