package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStateSignerRoundTrip(t *testing.T) {
	signer, err := NewStateSigner("secret", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewStateSigner() error = %v", err)
	}

	state, err := signer.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := signer.Verify(state); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestStateSignerRejects(t *testing.T) {
	signer, _ := NewStateSigner("secret", 10*time.Minute)
	other, _ := NewStateSigner("other-secret", 10*time.Minute)

	valid, _ := signer.Issue()
	foreign, _ := other.Issue()
	tampered := strings.Replace(valid, ".", ".9", 1)

	tests := []struct {
		name  string
		state string
		want  error
	}{
		{name: "empty", state: "", want: ErrStateMalformed},
		{name: "no separators", state: "abcdef", want: ErrStateMalformed},
		{name: "foreign secret", state: foreign, want: ErrStateSignature},
		{name: "tampered payload", state: tampered, want: ErrStateSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := signer.Verify(tt.state); !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStateSignerExpiry(t *testing.T) {
	signer, _ := NewStateSigner("secret", time.Minute)
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issuedAt }

	state, err := signer.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	signer.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if err := signer.Verify(state); !errors.Is(err, ErrStateExpired) {
		t.Errorf("Verify() error = %v, want ErrStateExpired", err)
	}
}
