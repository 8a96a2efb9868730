package sender

import (
	"context"

	mail "gopkg.in/mail.v2"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
}

func NewEmailSender(smtpHost string, smtpPort int, username, password, from string) *EmailSender {
	return &EmailSender{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers the content to the given address. The SMTP dial-and-send
// runs in a goroutine so the call honours context cancellation.
func (s *EmailSender) Send(ctx context.Context, to string, content Content) error {
	message := mail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", to)

	subject := content.Subject
	if subject == "" {
		subject = "Notification"
	}
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", content.Body)

	dialer := mail.NewDialer(s.smtpHost, s.smtpPort, s.username, s.password)

	errCh := make(chan error, 1)
	go func() {
		errCh <- dialer.DialAndSend(message)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
