package service

import (
	"context"
	"fmt"
	netmail "net/mail"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/pkg/jobs"
	"github.com/ecorvi/schmng-api/pkg/mail"
)

// JobPasswordResetMail is the job type delivering password reset links.
const JobPasswordResetMail = "mail.password_reset"

// PasswordResetMail is the payload of a password reset mail job.
type PasswordResetMail struct {
	Email     string
	Name      string
	Link      string
	ExpiresIn string
}

// MailService renders transactional mail and hands it to the configured sender.
type MailService struct {
	sender  mail.Sender
	appName string
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMailService constructs a mail service.
func NewMailService(sender mail.Sender, appName string, metrics *MetricsService, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{sender: sender, appName: appName, metrics: metrics, logger: logger}
}

// SendPasswordReset renders and sends the reset mail.
func (s *MailService) SendPasswordReset(ctx context.Context, payload PasswordResetMail) error {
	msg, err := mail.PasswordReset.Render(netmail.Address{Name: payload.Name, Address: payload.Email}, map[string]string{
		"AppName":   s.appName,
		"Name":      payload.Name,
		"Link":      payload.Link,
		"ExpiresIn": payload.ExpiresIn,
	})
	if err != nil {
		return err
	}
	err = s.sender.Send(ctx, msg)
	s.metrics.MailSent("password_reset", err)
	return err
}

// PasswordResetHandler adapts SendPasswordReset to the job queue.
func (s *MailService) PasswordResetHandler() jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(PasswordResetMail)
		if !ok {
			s.logger.Error("unexpected password reset payload", zap.String("job", job.ID))
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		return s.SendPasswordReset(ctx, payload)
	}
}
