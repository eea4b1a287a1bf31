package security

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SelectorLength is the fixed length of the public selector that follows the
// token prefix.
const SelectorLength = 8

const verifierBytes = 32

// VerifierCost is the bcrypt cost used for verifier hashes.
var VerifierCost = bcrypt.DefaultCost

var verifierEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PersonalToken is freshly generated token material. Raw is shown to the user
// once; only Selector and VerifierHash are persisted.
type PersonalToken struct {
	Raw          string
	Selector     string
	VerifierHash string
}

// GeneratePersonalToken draws a selector and a verifier independently from
// crypto/rand and hashes the verifier.
func GeneratePersonalToken(prefix string) (*PersonalToken, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("token prefix is required")
	}
	selector, err := NewSelector()
	if err != nil {
		return nil, err
	}
	verifier, err := newVerifier()
	if err != nil {
		return nil, err
	}
	hash, err := HashVerifier(verifier)
	if err != nil {
		return nil, err
	}
	return &PersonalToken{
		Raw:          prefix + selector + verifier,
		Selector:     selector,
		VerifierHash: hash,
	}, nil
}

// NewSelector returns a random lowercase hex selector of SelectorLength.
func NewSelector() (string, error) {
	b := make([]byte, SelectorLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func newVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToLower(verifierEncoding.EncodeToString(b)), nil
}

// HashVerifier returns the salted bcrypt hash of a verifier.
func HashVerifier(verifier string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(verifier), VerifierCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CheckVerifier compares a presented verifier with its stored hash.
func CheckVerifier(verifier, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(verifier)) == nil
}

// IsPersonalToken reports whether raw carries the personal access token prefix.
func IsPersonalToken(raw, prefix string) bool {
	return prefix != "" && strings.HasPrefix(raw, prefix)
}

// SplitPersonalToken splits "<prefix><selector><verifier>" into its parts.
// ok is false when the prefix is missing or the token is too short to carry
// both a selector and a non-empty verifier.
func SplitPersonalToken(raw, prefix string) (selector, verifier string, ok bool) {
	if !IsPersonalToken(raw, prefix) {
		return "", "", false
	}
	rest := raw[len(prefix):]
	if len(rest) <= SelectorLength {
		return "", "", false
	}
	return rest[:SelectorLength], rest[SelectorLength:], true
}
