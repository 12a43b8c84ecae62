package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/pavelanni/assessor/internal/attempt"
)

// AddressFunc resolves a student's email address.
type AddressFunc func(studentID int64) (name, email string)

// DomainAddresses addresses students as student-<id>@domain.
func DomainAddresses(domain string) AddressFunc {
	return func(studentID int64) (string, string) {
		return fmt.Sprintf("Student %d", studentID), fmt.Sprintf("student-%d@%s", studentID, domain)
	}
}

// SendGrid emails notices through the SendGrid v3 API. A client is built
// per message since sendgrid.Client keeps the request body on itself.
type SendGrid struct {
	apiKey  string
	baseURL string // overrides the API endpoint when set
	from    *mail.Email
	to      AddressFunc
}

// NewSendGrid creates a SendGrid notifier sending from fromAddr.
func NewSendGrid(apiKey, fromAddr string, to AddressFunc) *SendGrid {
	return &SendGrid{
		apiKey: apiKey,
		from:   mail.NewEmail("Assessor", fromAddr),
		to:     to,
	}
}

// AttemptGraded mails the notice to the student's address.
func (s *SendGrid) AttemptGraded(ctx context.Context, n attempt.Notice) error {
	name, addr := s.to(n.StudentID)
	msg := mail.NewSingleEmailPlainText(s.from, Subject(n), mail.NewEmail(name, addr), Body(n))

	client := sendgrid.NewSendClient(s.apiKey)
	if s.baseURL != "" {
		client.BaseURL = s.baseURL
	}
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	slog.Debug("grading email sent", "attempt_id", n.AttemptID, "to", addr, "status", resp.StatusCode)
	return nil
}
