package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrStateMalformed = errors.New("malformed state")
	ErrStateSignature = errors.New("state signature mismatch")
	ErrStateExpired   = errors.New("state expired")
)

// StateSigner issues and verifies OAuth anti-forgery state values using
// HMAC-SHA256. A state is "<nonce>.<unix expiry>.<mac>", so verification needs
// no shared storage and works across replicas.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer. An empty secret is replaced with a random
// one, which only works for a single process.
func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate state secret: %w", err)
		}
	}
	return &StateSigner{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a new signed state value
func (s *StateSigner) Issue() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(nonce) + "." + strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	return payload + "." + s.sign(payload), nil
}

// Verify checks the signature and expiry of a state value
func (s *StateSigner) Verify(state string) error {
	idx := strings.LastIndex(state, ".")
	if idx <= 0 {
		return ErrStateMalformed
	}
	payload, mac := state[:idx], state[idx+1:]

	nonce, expiry, ok := strings.Cut(payload, ".")
	if !ok || nonce == "" {
		return ErrStateMalformed
	}
	if !hmac.Equal([]byte(s.sign(payload)), []byte(mac)) {
		return ErrStateSignature
	}
	exp, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return ErrStateMalformed
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return ErrStateExpired
	}
	return nil
}

func (s *StateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
