package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"classroom/internal/models"
	"classroom/internal/security"
	"classroom/internal/validation"
)

func TestRequestResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.resets.RequestReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}
	if token != "" {
		t.Errorf("RequestReset() token = %q, want none", token)
	}
	if env.mailer.count() != 0 {
		t.Errorf("mailer called %d times, want 0", env.mailer.count())
	}
}

func TestRequestResetRejectsMalformedEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.resets.RequestReset(context.Background(), "")
	var vErr validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("RequestReset() error = %v, want ValidationError", err)
	}
}

func TestResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	session, err := env.sessions.Issue(ctx, alice.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	token, err := env.resets.RequestReset(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}
	if token == "" {
		t.Fatal("RequestReset() returned no token for a known email")
	}

	stored, err := env.store.ResetTokens.GetResetToken(ctx, security.HashToken(token))
	if err != nil {
		t.Fatalf("GetResetToken() error = %v", err)
	}
	if want := env.clock.Now().Add(time.Hour); !stored.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", stored.ExpiresAt, want)
	}
	if env.mailer.count() != 1 || env.mailer.sent[0].token != token || env.mailer.sent[0].to != "alice@example.com" {
		t.Errorf("mailer sent = %+v", env.mailer.sent)
	}

	if err := env.resets.CheckResetToken(ctx, token); err != nil {
		t.Errorf("CheckResetToken() error = %v", err)
	}

	if err := env.resets.CompleteReset(ctx, "wrong-token", "newpass1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("CompleteReset(wrong) error = %v, want ErrInvalidOrExpiredToken", err)
	}

	if err := env.resets.CompleteReset(ctx, token, "newpass1"); err != nil {
		t.Fatalf("CompleteReset() error = %v", err)
	}

	if _, err := env.credentials.VerifyPassword(ctx, "alice@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.credentials.VerifyPassword(ctx, "alice@example.com", "newpass1"); err != nil {
		t.Errorf("new password error = %v", err)
	}
	if _, err := env.sessions.Validate(ctx, session.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("session survived reset: %v", err)
	}

	if err := env.resets.CompleteReset(ctx, token, "another1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("second CompleteReset() error = %v, want ErrInvalidOrExpiredToken", err)
	}
	if err := env.resets.CheckResetToken(ctx, token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("CheckResetToken(used) error = %v, want ErrInvalidOrExpiredToken", err)
	}
	if got := testutil.ToFloat64(env.metrics.ResetsCompleted); got != 1 {
		t.Errorf("resets completed = %v, want 1", got)
	}
}

func TestResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	token, err := env.resets.RequestReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}

	env.clock.Advance(time.Hour)
	if err := env.resets.CheckResetToken(ctx, token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("CheckResetToken() error = %v, want ErrInvalidOrExpiredToken", err)
	}
	if err := env.resets.CompleteReset(ctx, token, "newpass1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("CompleteReset() error = %v, want ErrInvalidOrExpiredToken", err)
	}

	n, err := env.resets.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
}

func TestNewResetRequestReplacesPreviousToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	first, err := env.resets.RequestReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}
	second, err := env.resets.RequestReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}

	if err := env.resets.CompleteReset(ctx, first, "newpass1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("CompleteReset(first) error = %v, want ErrInvalidOrExpiredToken", err)
	}
	if err := env.resets.CompleteReset(ctx, second, "newpass1"); err != nil {
		t.Errorf("CompleteReset(second) error = %v", err)
	}
}

func TestCompleteResetConcurrentUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	token, err := env.resets.RequestReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.resets.CompleteReset(ctx, token, "newpass1")
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidOrExpiredToken):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successful completions = %d, want 1", successes)
	}
}

func TestCompleteResetValidatesPasswordBeforeConsuming(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	token, err := env.resets.RequestReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}

	var vErr validation.ValidationError
	if err := env.resets.CompleteReset(ctx, token, "short"); !errors.As(err, &vErr) {
		t.Fatalf("CompleteReset() error = %v, want ValidationError", err)
	}
	if err := env.resets.CheckResetToken(ctx, token); err != nil {
		t.Errorf("token consumed by rejected attempt: %v", err)
	}
}

func TestCompleteResetReportsBadTokenBeforePassword(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		token    string
		password string
	}{
		{name: "unknown token, short password", token: "bogus", password: "short"},
		{name: "empty token, short password", token: "", password: "x"},
		{name: "unknown token, valid password", token: "bogus", password: "newsecret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.resets.CompleteReset(context.Background(), tt.token, tt.password)
			if !errors.Is(err, ErrInvalidOrExpiredToken) {
				t.Errorf("CompleteReset() error = %v, want ErrInvalidOrExpiredToken", err)
			}
		})
	}
}

func TestRequestResetMailFailureIsNotReturned(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("ses unavailable")
	env.createUser(t, "Alice", "alice@example.com", "secret1", models.RoleStudent)

	token, err := env.resets.RequestReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}
	if token == "" {
		t.Error("token should still be issued when mail fails")
	}
}

func TestRequestResetSkipsOAuthOnlyUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credentials.CreateUser(ctx, NewUserInput{
		Name:     "Olive",
		Email:    "olive@example.com",
		External: models.ExternalIdentity{Provider: "google", Subject: "g-1"},
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	token, err := env.resets.RequestReset(ctx, "olive@example.com")
	if err != nil {
		t.Fatalf("RequestReset() error = %v", err)
	}
	if token != "" || env.mailer.count() != 0 {
		t.Errorf("token = %q, mails = %d, want none", token, env.mailer.count())
	}
}
