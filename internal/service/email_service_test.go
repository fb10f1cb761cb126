package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"classroom/internal/utils"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSendPasswordResetEmail(t *testing.T) {
	ses := &fakeSES{}
	svc := &EmailService{
		client:     ses,
		fromEmail:  "noreply@example.com",
		fromName:   "Classroom",
		appBaseURL: "https://school.example.com",
		enabled:    true,
		logger:     utils.NewNopLogger(),
	}

	if err := svc.SendPasswordResetEmail(context.Background(), "alice@example.com", "<Alice>", "tok_123", time.Hour); err != nil {
		t.Fatalf("SendPasswordResetEmail() error = %v", err)
	}

	if got := aws.ToString(ses.input.FromEmailAddress); got != "Classroom <noreply@example.com>" {
		t.Errorf("From = %q", got)
	}
	if got := ses.input.Destination.ToAddresses; len(got) != 1 || got[0] != "alice@example.com" {
		t.Errorf("To = %v", got)
	}

	html := aws.ToString(ses.input.Content.Simple.Body.Html.Data)
	text := aws.ToString(ses.input.Content.Simple.Body.Text.Data)
	link := "https://school.example.com/reset-password?token=tok_123"
	if !strings.Contains(text, link) || !strings.Contains(html, link) {
		t.Errorf("bodies missing reset link %q", link)
	}
	if strings.Contains(html, "<Alice>") || !strings.Contains(html, "&lt;Alice&gt;") {
		t.Error("html body does not escape the user name")
	}
	if !strings.Contains(text, "1h0m0s") {
		t.Error("text body missing expiry")
	}
}

func TestSendEmailFailure(t *testing.T) {
	svc := &EmailService{
		client:    &fakeSES{err: errors.New("throttled")},
		fromEmail: "noreply@example.com",
		enabled:   true,
		logger:    utils.NewNopLogger(),
	}
	if err := svc.SendWelcomeEmail(context.Background(), "bob@example.com", "Bob", "teacher"); err == nil {
		t.Fatal("SendWelcomeEmail() error = nil, want failure")
	}
}

func TestDisabledEmailServiceSkips(t *testing.T) {
	svc, err := NewEmailService(context.Background(), "us-east-1", "", "", "http://localhost", false, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewEmailService() error = %v", err)
	}
	if svc.IsEnabled() {
		t.Fatal("service without sender should be disabled")
	}
	if err := svc.SendPasswordResetEmail(context.Background(), "a@example.com", "A", "tok", time.Hour); err != nil {
		t.Errorf("disabled send error = %v", err)
	}
}

func TestSendGradeReport(t *testing.T) {
	ses := &fakeSES{}
	svc := &EmailService{
		client:    ses,
		fromEmail: "noreply@example.com",
		enabled:   true,
		logger:    utils.NewNopLogger(),
	}
	report := &GradeReport{
		ResultID:    "r-1",
		StudentName: "Arnold <script>",
		ExamTitle:   "Volcanoes",
		Score:       17,
		TotalMarks:  20,
		Percentage:  85,
		Reviewed:    true,
		GeneratedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	if err := svc.SendGradeReport(context.Background(), "arnold@example.com", report); err != nil {
		t.Fatalf("SendGradeReport() error = %v", err)
	}

	if got := aws.ToString(ses.input.Content.Simple.Subject.Data); got != "Your Grade Report: Volcanoes" {
		t.Errorf("Subject = %q", got)
	}
	html := aws.ToString(ses.input.Content.Simple.Body.Html.Data)
	text := aws.ToString(ses.input.Content.Simple.Body.Text.Data)
	for _, want := range []string{"17 / 20", "85.0%", "2026-05-01 09:30"} {
		if !strings.Contains(text, want) || !strings.Contains(html, want) {
			t.Errorf("report bodies missing %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("html report does not escape the student name")
	}
	if strings.Contains(html, "not been reviewed") {
		t.Error("reviewed report carries the pending review notice")
	}
}
