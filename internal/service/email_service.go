package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// sesClient is the part of the SES API the email service uses
type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesClient
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
	logger     *zap.SugaredLogger
}

// NewEmailService creates a new email service. Without a sender address the
// service is disabled and every send is skipped.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, debug bool, logger *zap.SugaredLogger) (*EmailService, error) {
	if fromEmail == "" {
		logger.Infow("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, debug: debug, appBaseURL: appBaseURL, logger: logger}, nil
	}

	if debug {
		logger.Debugw("Initializing email service with AWS SES",
			"region", awsRegion,
			"from_email", fromEmail,
			"from_name", fromName,
			"app_base_url", appBaseURL,
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Infow("Email service enabled", "from", fromEmail, "region", awsRegion)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		debug:      debug,
		logger:     logger,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>Password Reset Request</h1>
		<p>Hi {{.Name}},</p>
		<p>We received a request to reset the password of your Classroom account.</p>
		<p style="text-align: center;"><a href="{{.Link}}">Reset Password</a></p>
		<p>Or copy and paste this link into your browser:</p>
		<p style="word-break: break-all; font-size: 12px; color: #666;">{{.Link}}</p>
		<p><strong>This link will expire in {{.Expiry}}.</strong></p>
		<p>If you didn't request a password reset, you can safely ignore this email.</p>
	</div>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("reset").Parse(`Hi {{.Name}},

We received a request to reset the password of your Classroom account.

Click the link below to reset your password:
{{.Link}}

This link will expire in {{.Expiry}}.

If you didn't request a password reset, you can safely ignore this email.
`))

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>Welcome to Classroom!</h1>
		<p>Hi {{.Name}},</p>
		<p>Your {{.Role}} account is ready.</p>
		<p style="text-align: center;"><a href="{{.Link}}">Get Started</a></p>
	</div>
</body>
</html>
`))

var welcomeText = texttemplate.Must(texttemplate.New("welcome").Parse(`Hi {{.Name}},

Your {{.Role}} account is ready.

Get started: {{.Link}}
`))

type emailData struct {
	Name   string
	Link   string
	Expiry string
	Role   string
}

// ResetLink returns the link mailed to the user for a reset token
func (s *EmailService) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, url.QueryEscape(token))
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string, ttl time.Duration) error {
	if !s.enabled {
		s.logger.Infow("Skipping email send (service disabled)", "kind", "password_reset", "to", toEmail)
		return nil
	}

	data := emailData{Name: toName, Link: s.ResetLink(resetToken), Expiry: ttl.String()}
	htmlBody, textBody, err := render(resetHTML, resetText, data)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, toEmail, "Reset Your Classroom Password", htmlBody, textBody)
}

// SendWelcomeEmail sends a welcome email to new users
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName, role string) error {
	if !s.enabled {
		s.logger.Infow("Skipping email send (service disabled)", "kind", "welcome", "to", toEmail)
		return nil
	}

	data := emailData{Name: toName, Link: s.appBaseURL + "/login", Role: role}
	htmlBody, textBody, err := render(welcomeHTML, welcomeText, data)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, toEmail, "Welcome to Classroom!", htmlBody, textBody)
}

// SendGradeReport mails a rendered grade report to the student
func (s *EmailService) SendGradeReport(ctx context.Context, toEmail string, report *GradeReport) error {
	if !s.enabled {
		s.logger.Infow("Skipping email send (service disabled)", "kind", "grade_report", "to", toEmail)
		return nil
	}

	htmlBody, textBody, err := report.Render()
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, toEmail, "Your Grade Report: "+report.ExamTitle, htmlBody, textBody)
}

func render(h *htmltemplate.Template, t *texttemplate.Template, data emailData) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := h.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email: %w", err)
	}
	if err := t.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug && result.MessageId != nil {
		s.logger.Debugw("SES SendEmail succeeded", "message_id", *result.MessageId)
	}
	s.logger.Infow("Email sent", "to", toEmail, "subject", subject)
	return nil
}
