package email

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
)

var ErrInvalidRecipient = errors.New("invalid recipient address")

type Config struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends receipts over SMTP.
type Service struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

// NewService creates an SMTP sender. Without a username it sends
// unauthenticated, which is what local mail catchers expect.
func NewService(cfg Config) *Service {
	s := &Service{
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
		from: cfg.From,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

// SendReceipt e-mails the receipt of a paid order.
func (s *Service) SendReceipt(to string, r Receipt) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	body, err := BuildReceiptBody(r)
	if err != nil {
		return err
	}

	shortID := r.OrderID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	subject := fmt.Sprintf("Your transcription order receipt (#%s)", shortID)
	return s.sendHTML(addr.Address, subject, body)
}

func (s *Service) sendHTML(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	if err := s.send(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
