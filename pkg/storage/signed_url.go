package storage

import (
	"crypto/hmac"
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
	ErrTokenInvalid = errors.New("storage: invalid download token")
	ErrTokenExpired = errors.New("storage: download token expired")
)

// Grant is the content of a verified download token.
type Grant struct {
	ID        string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues HMAC-SHA256 download tokens of the form id.expiry.path.signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner builds a signer; a non-positive ttl defaults to one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting access to path.
func (s *SignedURLSigner) Sign(id, path string) (string, time.Time, error) {
	if id == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("id and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	parts := []string{id, strconv.FormatInt(expiresAt.Unix(), 10), base64.RawURLEncoding.EncodeToString([]byte(path))}
	return strings.Join(append(parts, s.mac(parts)), "."), expiresAt, nil
}

// Verify checks the signature and, unless allowExpired, the expiry.
func (s *SignedURLSigner) Verify(token string, allowExpired bool) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, ErrTokenInvalid
	}
	if !hmac.Equal([]byte(s.mac(parts[:3])), []byte(parts[3])) {
		return Grant{}, ErrTokenInvalid
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Grant{}, ErrTokenInvalid
	}
	path, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Grant{}, ErrTokenInvalid
	}
	grant := Grant{ID: parts[0], Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if !allowExpired && s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(parts []string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}
