package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"github.com/mechastore/mecha-backend/pkg/config"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
)

// userFinder resolves the recipient address for an order email.
type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Mailer sends transactional order email over SMTP. When no host is
// configured every send is a no-op, which keeps local development quiet.
type Mailer struct {
	cfg   config.SMTPConfig
	users userFinder
	send  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer builds a mailer from SMTP settings.
func NewMailer(cfg config.SMTPConfig, users userFinder) (*Mailer, error) {
	if users == nil {
		return nil, fmt.Errorf("user finder required")
	}
	return &Mailer{cfg: cfg, users: users, send: smtp.SendMail}, nil
}

// SendOrderConfirmation emails the customer a summary of their new order.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if m.cfg.Host == "" {
		return nil
	}

	user, err := m.users.FindByID(ctx, order.CustomerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve recipient")
	}

	subject := fmt.Sprintf("Order %s received", order.OrderCode)
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", user.FullName)
	fmt.Fprintf(&body, "We received your order %s.\r\n\r\n", order.OrderCode)
	for _, item := range order.Items {
		fmt.Fprintf(&body, "  %dx %s - %s\r\n", item.Quantity, item.ItemName, item.LineTotal.StringFixed(0))
	}
	fmt.Fprintf(&body, "\r\nTotal: %s\r\nPayment method: %s\r\n", order.TotalAmount.StringFixed(0), order.PaymentMethod)

	return m.deliver(user.Email, subject, body.String())
}

func (m *Mailer) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "smtp send")
	}
	return nil
}
