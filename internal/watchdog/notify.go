package watchdog

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"hellod/internal/config"
	"hellod/internal/logging"
)

// SMTPTimeout bounds a whole mail delivery
const SMTPTimeout = 10 * time.Second

// SMTPNotifier mails alerts through an SMTP server. The session must upgrade with STARTTLS
// before authenticating.
type SMTPNotifier struct {
	cfg       config.SMTPConfig
	now       func() time.Time
	tlsConfig *tls.Config
}

// NewSMTPNotifier creates a notifier for cfg
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:       cfg,
		now:       time.Now,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

// Notify sends one alert. Incomplete configuration skips the mail without error.
func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	if !n.cfg.Complete() {
		logging.Warnf("Email configuration incomplete; skipping email.")
		return nil
	}

	msg, err := n.message(subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(n.tlsConfig),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.User),
		mail.WithPassword(n.cfg.Password),
		mail.WithTimeout(SMTPTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, SMTPTimeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send alert via %s: %w", n.cfg.Addr(), err)
	}

	logging.Infof("Alert email sent: %s", subject)
	return nil
}

// message builds the plain text alert. ALERT_TO may list several comma separated recipients.
func (n *SMTPNotifier) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.ToFromString(n.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid recipients %q: %w", n.cfg.To, err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(n.now())
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
