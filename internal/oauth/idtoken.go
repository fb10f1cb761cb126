package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidIDToken = errors.New("invalid id_token")

// IDTokenClaims are the OpenID Connect claims read from an id_token
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email         string       `json:"email"`
	EmailVerified VerifiedFlag `json:"email_verified"`
	Name          string       `json:"name"`
	Picture       string       `json:"picture"`
	Nonce         string       `json:"nonce"`
}

// VerifiedFlag decodes a JSON boolean that some providers send as a string.
// Google uses true, Apple uses "true".
type VerifiedFlag bool

func (f *VerifiedFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = VerifiedFlag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("email_verified: %w", err)
	}
	*f = VerifiedFlag(strings.EqualFold(s, "true"))
	return nil
}

// IDTokenVerifier checks RS256 id_tokens against a provider's JWKS.
// Keys are cached and refetched when an unknown key id appears.
type IDTokenVerifier struct {
	jwksURL  string
	issuers  []string
	client   *http.Client
	cacheTTL time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewIDTokenVerifier creates a verifier accepting tokens from any of issuers
func NewIDTokenVerifier(jwksURL string, issuers ...string) *IDTokenVerifier {
	return &IDTokenVerifier{
		jwksURL:  jwksURL,
		issuers:  issuers,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: time.Hour,
	}
}

// Verify parses the token, checks signature, expiry, issuer and audience and
// returns its claims
func (v *IDTokenVerifier) Verify(ctx context.Context, raw, audience string) (*IDTokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
	)

	claims := &IDTokenClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if !v.trustedIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: untrusted issuer %q", ErrInvalidIDToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}
	return claims, nil
}

func (v *IDTokenVerifier) trustedIssuer(issuer string) bool {
	for _, candidate := range v.issuers {
		if candidate == issuer {
			return true
		}
	}
	return false
}

func (v *IDTokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < v.cacheTTL {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = time.Now()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("public key %q not found", kid)
	}
	return key, nil
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *IDTokenVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch public keys: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode public keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, key := range set.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKey(key)
		if err != nil {
			return nil, err
		}
		keys[key.Kid] = pub
	}
	return keys, nil
}

func rsaPublicKey(key jwk) (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus for key %q: %w", key.Kid, err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent for key %q: %w", key.Kid, err)
	}
	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent*256 + int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}
