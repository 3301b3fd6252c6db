// Package mail renders and dispatches the transactional emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind selects the email layout.
type Kind string

const (
	KindThank         Kind = "thank"
	KindInvitation    Kind = "invitation"
	KindResetPassword Kind = "reset-password"
)

// Recipient is the primary addressee.
type Recipient struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Request describes one email to send.
type Request struct {
	Type              Kind      `json:"type"`
	Message           string    `json:"message"`
	HeaderName        string    `json:"headerName,omitempty"`
	OrganizationName  string    `json:"organizationName,omitempty"`
	RepName           string    `json:"repName,omitempty"`
	URL               string    `json:"url,omitempty"`
	InviteLink        string    `json:"inviteLink,omitempty"`
	ResetPasswordLink string    `json:"resetPasswordLink,omitempty"`
	Logo              string    `json:"logo,omitempty"`
	FromTitle         string    `json:"fromTitle,omitempty"`
	SendTo            string    `json:"sendTo,omitempty"`
	To                Recipient `json:"to"`
}

// Message is a rendered email ready for a transport.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the sender identity and link host.
type Config struct {
	NoReply   string
	FromTitle string
	AppHost   string
}

// Service renders requests and hands them to a Sender.
type Service struct {
	sender Sender
	cfg    Config
	tmpl   *template.Template
	logger *zap.Logger
}

type view struct {
	Subject          string
	HeaderName       string
	OrganizationName string
	Message          string
	URL              string
	ButtonText       string
	Expiry           string
	RepName          string
	Logo             string
	AppHost          string
}

// NewService parses the embedded templates.
func NewService(sender Sender, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NoReply == "" {
		cfg.NoReply = "noreply@example.com"
	}
	if cfg.FromTitle == "" {
		cfg.FromTitle = "From title"
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Service{sender: sender, cfg: cfg, tmpl: tmpl, logger: logger}, nil
}

// Dispatch sends the email selected by req.Type.
func (s *Service) Dispatch(ctx context.Context, req Request) error {
	switch req.Type {
	case KindThank:
		return s.send(ctx, req, req.Message, view{URL: req.URL})
	case KindInvitation:
		return s.send(ctx, req, "Activate Your Account", view{
			URL:        req.InviteLink,
			ButtonText: "ACTIVATE ACCOUNT",
			Expiry:     "After 14 days, this link will expire.",
		})
	case KindResetPassword:
		return s.send(ctx, req, "Password Reset", view{
			URL:        req.ResetPasswordLink,
			ButtonText: "RESET PASSWORD",
			Expiry:     "After two hours, this link will expire.",
		})
	default:
		return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown email type %q", req.Type))
	}
}

// SendInvitation emails an activation link.
func (s *Service) SendInvitation(ctx context.Context, email, link string) error {
	return s.Dispatch(ctx, Request{
		Type:       KindInvitation,
		Message:    "You have been invited to join __ocxers__.",
		InviteLink: link,
		To:         Recipient{Email: email},
	})
}

// SendResetPassword emails a password reset link.
func (s *Service) SendResetPassword(ctx context.Context, email, link string) error {
	return s.Dispatch(ctx, Request{
		Type:              KindResetPassword,
		Message:           "Please follow the below link to reset your __ocxers__ account password.",
		ResetPasswordLink: link,
		To:                Recipient{Email: email},
	})
}

func (s *Service) send(ctx context.Context, req Request, subject string, v view) error {
	to := strings.TrimSpace(req.To.Email)
	if to == "" {
		return domain.NewError(domain.ErrCodeInvalid, "recipient email is required")
	}

	v.Subject = subject
	v.HeaderName = req.HeaderName
	v.OrganizationName = req.OrganizationName
	v.Message = req.Message
	v.RepName = req.RepName
	v.AppHost = s.cfg.AppHost
	v.Logo = req.Logo
	if v.Logo == "" && s.cfg.AppHost != "" {
		v.Logo = strings.TrimSuffix(s.cfg.AppHost, "/") + "/staticImgs/logo.png"
	}

	var body bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&body, "notification.html", v); err != nil {
		return fmt.Errorf("render %s mail: %w", req.Type, err)
	}

	fromTitle := req.FromTitle
	if fromTitle == "" {
		fromTitle = s.cfg.FromTitle
	}
	msg := Message{
		From:    fmt.Sprintf("%s <%s>", fromTitle, s.cfg.NoReply),
		To:      []string{to},
		Subject: subject,
		HTML:    body.String(),
	}
	if cc := strings.TrimSpace(req.SendTo); cc != "" {
		msg.Cc = []string{cc}
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("mail delivery failed", zap.String("type", string(req.Type)), zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}
