package watchdog

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	netmail "net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hellod/internal/config"
)

// smtpSession is what the fake server saw during one delivery
type smtpSession struct {
	commands []string
	data     string
	tls      bool
}

// fakeSMTP is a minimal SMTP server accepting one delivery with AUTH PLAIN
type fakeSMTP struct {
	host     string
	port     int
	roots    *x509.CertPool
	sessions chan smtpSession
}

// startFakeSMTP starts the server. With offerTLS it advertises STARTTLS and only offers
// AUTH once the session is encrypted.
func startFakeSMTP(t *testing.T, offerTLS bool) *fakeSMTP {
	t.Helper()

	// Borrow the test certificate, valid for 127.0.0.1, from an httptest TLS server
	certSrv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(certSrv.Close)
	serverTLS := &tls.Config{Certificates: certSrv.TLS.Certificates, MinVersion: tls.VersionTLS12}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	f := &fakeSMTP{
		host:     addr.IP.String(),
		port:     addr.Port,
		roots:    certSrv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs,
		sessions: make(chan smtpSession, 1),
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

		tp := textproto.NewConn(conn)
		var s smtpSession
		reply := func(line string) { _ = tp.PrintfLine("%s", line) }

		reply("220 127.0.0.1 ESMTP fake")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				f.sessions <- s
				return
			}
			s.commands = append(s.commands, line)
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO":
				reply("250-127.0.0.1")
				switch {
				case s.tls:
					reply("250 AUTH PLAIN")
				case offerTLS:
					reply("250 STARTTLS")
				default:
					reply("250 AUTH PLAIN")
				}
			case "STARTTLS":
				reply("220 Ready to start TLS")
				tlsConn := tls.Server(conn, serverTLS)
				if err := tlsConn.Handshake(); err != nil {
					f.sessions <- s
					return
				}
				tp = textproto.NewConn(tlsConn)
				s.tls = true
			case "AUTH":
				reply("235 2.7.0 Authentication successful")
			case "MAIL", "RCPT", "NOOP", "RSET":
				reply("250 OK")
			case "DATA":
				reply("354 End data with <CR><LF>.<CR><LF>")
				b, err := tp.ReadDotBytes()
				if err != nil {
					f.sessions <- s
					return
				}
				s.data = string(b)
				reply("250 OK")
			case "QUIT":
				reply("221 Bye")
				f.sessions <- s
				return
			default:
				reply("502 Command not implemented")
			}
		}
	}()

	return f
}

func (f *fakeSMTP) notifier(from, to string) *SMTPNotifier {
	n := NewSMTPNotifier(config.SMTPConfig{
		Host:     f.host,
		Port:     f.port,
		User:     "alerts",
		Password: "secret",
		From:     from,
		To:       to,
	})
	n.tlsConfig = &tls.Config{ServerName: f.host, RootCAs: f.roots, MinVersion: tls.VersionTLS12}
	return n
}

func (f *fakeSMTP) session(t *testing.T) smtpSession {
	t.Helper()
	select {
	case s := <-f.sessions:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("fake SMTP server saw no session")
		return smtpSession{}
	}
}

func TestSMTPNotifierDelivers(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		to        string
		wantFrom  string
		wantRcpts []string
	}{
		{
			name:      "bare addresses",
			from:      "alerts@example.com",
			to:        "ops@example.com",
			wantFrom:  "MAIL FROM:<alerts@example.com>",
			wantRcpts: []string{"RCPT TO:<ops@example.com>"},
		},
		{
			name:      "display name sender and several recipients",
			from:      "Alerts <alerts@example.com>",
			to:        "ops@example.com, dev@example.com",
			wantFrom:  "MAIL FROM:<alerts@example.com>",
			wantRcpts: []string{"RCPT TO:<ops@example.com>", "RCPT TO:<dev@example.com>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := startFakeSMTP(t, true)
			n := srv.notifier(tt.from, tt.to)

			err := n.Notify(context.Background(), "Website DOWN alert", "line one\nline two")
			require.NoError(t, err)

			s := srv.session(t)
			require.True(t, s.tls, "mail must be sent over STARTTLS")

			var mailFrom string
			var rcpts []string
			for _, c := range s.commands {
				switch {
				case strings.HasPrefix(c, "MAIL FROM:"):
					mailFrom = c
				case strings.HasPrefix(c, "RCPT TO:"):
					rcpts = append(rcpts, c)
				}
			}
			require.Equal(t, tt.wantFrom, mailFrom)
			require.Equal(t, tt.wantRcpts, rcpts)
			require.Contains(t, strings.Join(s.commands, "\n"), "AUTH PLAIN")

			require.Contains(t, s.data, "Subject: Website DOWN alert")
			require.Contains(t, s.data, "line one")
			require.Contains(t, s.data, "line two")
		})
	}
}

func TestSMTPNotifierRequiresSTARTTLS(t *testing.T) {
	srv := startFakeSMTP(t, false)
	n := srv.notifier("alerts@example.com", "ops@example.com")

	require.Error(t, n.Notify(context.Background(), "subject", "body"))

	s := srv.session(t)
	require.False(t, s.tls)
	for _, c := range s.commands {
		require.False(t, strings.HasPrefix(c, "AUTH"), "credentials sent in clear text: %q", c)
		require.False(t, strings.HasPrefix(c, "MAIL"), "mail sent in clear text: %q", c)
	}
}

func TestSMTPNotifierSkipsIncompleteConfig(t *testing.T) {
	// Host points nowhere; a dial attempt would fail the test
	n := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: 1})
	require.NoError(t, n.Notify(context.Background(), "subject", "body"))
}

func TestSMTPNotifierConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	n := NewSMTPNotifier(config.SMTPConfig{
		Host: "127.0.0.1", Port: port,
		User: "u", Password: "p", From: "a@example.com", To: "b@example.com",
	})
	require.Error(t, n.Notify(context.Background(), "subject", "body"))
}

func TestMessage(t *testing.T) {
	n := NewSMTPNotifier(config.SMTPConfig{From: "Alerts <a@example.com>", To: "b@example.com, c@example.com"})
	date := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return date }

	msg, err := n.message("Website DOWN alert", "first\nsecond")
	require.NoError(t, err)

	var b strings.Builder
	_, err = msg.WriteTo(&b)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(strings.NewReader(b.String()))
	require.NoError(t, err)

	from, err := parsed.Header.AddressList("From")
	require.NoError(t, err)
	require.Equal(t, []*netmail.Address{{Name: "Alerts", Address: "a@example.com"}}, from)

	to, err := parsed.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	require.Equal(t, "b@example.com", to[0].Address)
	require.Equal(t, "c@example.com", to[1].Address)

	require.Equal(t, "Website DOWN alert", parsed.Header.Get("Subject"))
	got, err := parsed.Header.Date()
	require.NoError(t, err)
	require.True(t, date.Equal(got))
	require.Contains(t, parsed.Header.Get("Content-Type"), "text/plain")
}

func TestMessageRejectsBadAddresses(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{name: "malformed sender", from: "not an address", to: "b@example.com"},
		{name: "malformed recipient", from: "a@example.com", to: "b@example.com, nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewSMTPNotifier(config.SMTPConfig{From: tt.from, To: tt.to})
			_, err := n.message("subject", "body")
			require.Error(t, err)
		})
	}
}
