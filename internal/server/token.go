package server

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// downloadTokens issues and verifies signed download links.
// A token is bound to one artifact name and expires after ttl.
type downloadTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newDownloadTokens(secret string, ttl time.Duration) *downloadTokens {
	return &downloadTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *downloadTokens) issue(name string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *downloadTokens) verify(token, name string) error {
	if token == "" {
		return errors.New("missing token")
	}
	_, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(name),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	return err
}
