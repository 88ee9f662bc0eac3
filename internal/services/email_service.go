package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
)

// EmailService delivers account notifications. Every method blocks until
// the provider has accepted or refused the message and reports refusal to
// the caller, who decides whether it is fatal.
type EmailService interface {
	SendLockNotification(ctx context.Context, email string, lockedUntil time.Time) error
	SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// SESSender is the subset of the SES client used here
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client      SESSender
	fromAddress string
	logger      *slog.Logger
}

func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESEmailServiceWithClient(client SESSender, fromAddress string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (s *AWSSESEmailService) SendLockNotification(ctx context.Context, email string, lockedUntil time.Time) error {
	subject, html, text := lockNotificationContent(lockedUntil)
	return s.send(ctx, email, subject, html, text)
}

func (s *AWSSESEmailService) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	subject, html, text := resetCodeContent(code, expiresAt)
	return s.send(ctx, email, subject, html, text)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogEmailService writes messages to the log instead of sending them. Used
// when no SES region is configured.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) SendLockNotification(ctx context.Context, email string, lockedUntil time.Time) error {
	s.logger.Info("email (not sent): account locked",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Time("locked_until", lockedUntil))
	return nil
}

// SendResetCode logs that a code was issued. The code itself is only
// written at debug level, for local development.
func (s *LogEmailService) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	s.logger.Info("email (not sent): password reset code",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Time("expires_at", expiresAt))
	s.logger.DebugContext(ctx, "password reset code",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("code", code))
	return nil
}

const emailStyle = `body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }`

func lockNotificationContent(lockedUntil time.Time) (subject, html, text string) {
	until := lockedUntil.UTC().Format("2 Jan 2006 15:04 MST")
	subject = "ThriftIn UTM: your account has been temporarily locked"

	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        %s
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Account Temporarily Locked</h1></div>
        <p>We noticed several unsuccessful sign-in attempts on your ThriftIn UTM account.</p>
        <p>To protect you, sign-in is disabled until <strong>%s</strong>.</p>
        <p>If this was not you, reset your password once the lock has lifted.</p>
        <div class="footer"><p>This is an automated message. Please do not reply to this email.</p></div>
    </div>
</body>
</html>
`, emailStyle, until)

	text = fmt.Sprintf(`Account Temporarily Locked

We noticed several unsuccessful sign-in attempts on your ThriftIn UTM account.
To protect you, sign-in is disabled until %s.

If this was not you, reset your password once the lock has lifted.

This is an automated message. Please do not reply to this email.
`, until)

	return subject, html, text
}

func resetCodeContent(code string, expiresAt time.Time) (subject, html, text string) {
	until := expiresAt.UTC().Format("2 Jan 2006 15:04 MST")
	subject = "ThriftIn UTM: your password reset code"

	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        %s
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Password Reset</h1></div>
        <p>Use this code to reset your ThriftIn UTM password:</p>
        <div class="code">%s</div>
        <p>The code can be used once and expires at <strong>%s</strong>.</p>
        <p>If you did not ask for a reset you can ignore this email.</p>
        <div class="footer"><p>This is an automated message. Please do not reply to this email.</p></div>
    </div>
</body>
</html>
`, emailStyle, code, until)

	text = fmt.Sprintf(`Password Reset

Use this code to reset your ThriftIn UTM password:

    %s

The code can be used once and expires at %s.
If you did not ask for a reset you can ignore this email.
`, code, until)

	return subject, html, text
}
