package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Link token errors
var (
	ErrInvalidToken = errors.New("invalid link token")
	ErrTokenScope   = errors.New("link token does not match file")
)

// LinkClaims binds a token to one owner file
type LinkClaims struct {
	OwnerID int64  `json:"owner"`
	File    string `json:"file"`
	jwt.RegisteredClaims
}

// LinkSigner issues and verifies HMAC signed download tokens
type LinkSigner struct {
	secret []byte
	now    func() time.Time
}

// NewLinkSigner creates a signer with the given secret
func NewLinkSigner(secret string) *LinkSigner {
	return &LinkSigner{secret: []byte(secret), now: time.Now}
}

// Sign returns a token valid for ttl and its expiry
func (s *LinkSigner) Sign(ownerID int64, file string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := LinkClaims{
		OwnerID: ownerID,
		File:    file,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign link: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, expiry and that the token was issued for ownerID/file
func (s *LinkSigner) Verify(tokenStr string, ownerID int64, file string) error {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}
	token, err := jwt.ParseWithClaims(tokenStr, &LinkClaims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*LinkClaims)
	if !ok {
		return ErrInvalidToken
	}
	if claims.OwnerID != ownerID || claims.File != file {
		return ErrTokenScope
	}
	return nil
}
