// Package notify sends account lifecycle notices by email. Delivery is
// best effort; callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Notifier is told about account lifecycle events.
type Notifier interface {
	SignupReceived(ctx context.Context, name, email string) error
	Decision(ctx context.Context, name, email string, approved bool) error
}

// Nop drops every notice. Used when mail is not configured.
type Nop struct{}

func (Nop) SignupReceived(context.Context, string, string) error { return nil }
func (Nop) Decision(context.Context, string, string, bool) error { return nil }

// Mail renders notices as plain-text email.
type Mail struct {
	mailer Mailer
	from   string
	admins []string
}

func NewMail(mailer Mailer, from string, admins []string) *Mail {
	return &Mail{mailer: mailer, from: from, admins: admins}
}

// SignupReceived tells the admins a signup is waiting for review.
func (m *Mail) SignupReceived(ctx context.Context, name, email string) error {
	if len(m.admins) == 0 {
		return nil
	}
	return m.send(ctx, &Email{
		From:    m.from,
		To:      m.admins,
		Subject: "New Janus signup awaiting approval",
		Body: fmt.Sprintf(
			"%s <%s> signed up and is waiting for approval.\n\nReview pending accounts in the admin screen.\n",
			name, email),
	})
}

// Decision tells the user how their signup was decided.
func (m *Mail) Decision(ctx context.Context, name, email string, approved bool) error {
	subject := "Your Janus account was not approved"
	body := "Hi %s,\n\nAn administrator declined your signup. Contact your building administrator if this is unexpected.\n"
	if approved {
		subject = "Your Janus account is approved"
		body = "Hi %s,\n\nAn administrator approved your account. You can now log in.\n"
	}
	return m.send(ctx, &Email{
		From:    m.from,
		To:      []string{email},
		Subject: subject,
		Body:    fmt.Sprintf(body, firstName(name)),
	})
}

func (m *Mail) send(ctx context.Context, e *Email) error {
	if m.mailer == nil {
		return errors.New("notify: no mailer configured")
	}
	if err := m.mailer.SendMail(ctx, e); err != nil {
		return fmt.Errorf("notify %q: %w", e.Subject, err)
	}
	return nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
