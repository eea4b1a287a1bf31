package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by a signed session token. TokenID ties
// the session to a personal access token row; Scope narrows its use.
type SessionClaims struct {
	Scope   string `json:"scope,omitempty"`
	TokenID *uint  `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id.
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// SessionSigner issues and verifies HS256 session tokens.
type SessionSigner struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionSigner(key, issuer, audience string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used in tests.
func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	s.now = now
	return s
}

// IssueOptions customizes a session token.
type IssueOptions struct {
	Scope   string
	TokenID *uint
	TTL     time.Duration
}

// Issue signs a session token for userID.
func (s *SessionSigner) Issue(userID uint, opts IssueOptions) (string, time.Time, error) {
	if len(s.key) == 0 {
		return "", time.Time{}, errors.New("signing key is required for token generation")
	}
	if userID == 0 {
		return "", time.Time{}, errors.New("user id is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	expires := now.Add(ttl)

	claims := SessionClaims{
		Scope:   opts.Scope,
		TokenID: opts.TokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, issuer, audience and expiry of raw.
func (s *SessionSigner) Parse(raw string) (*SessionClaims, error) {
	if len(s.key) == 0 {
		return nil, errors.New("signing key is required for token verification")
	}
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
