package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"resourcehive/pkg/logger"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct{}

func (LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	logger.Info(ctx).Str("to", to).Str("subject", subject).Str("body", body).Msg("[EMAIL]")
	return nil
}

func (LogSender) SendSMS(ctx context.Context, to, body string) error {
	logger.Info(ctx).Str("to", to).Str("body", body).Msg("[SMS]")
	return nil
}

// SMTPSender delivers plain-text email through an SMTP relay
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, Username: username, Password: password, From: from, send: smtp.SendMail}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	if err := s.send(addr, auth, s.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// HTTPSMSSender posts messages to an SMS gateway at a bounded rate
type HTTPSMSSender struct {
	url     string
	apiKey  string
	sender  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPSMSSender(url, apiKey, sender string, perSecond float64) *HTTPSMSSender {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &HTTPSMSSender{
		url:     url,
		apiKey:  apiKey,
		sender:  sender,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{
		"apikey":     s.apiKey,
		"number":     to,
		"message":    body,
		"sendername": s.sender,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
