package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of issued session tokens.
const TokenTTL = 7 * 24 * time.Hour

// Claims is the payload of a session token.
type Claims struct {
	UserID   string `json:"id"`
	CuID     string `json:"cuId,omitempty"`
	UserName string `json:"userName"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens with a fixed secret.
// A Signer is immutable after construction.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a signer for secret. The secret must not be empty.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key, now: time.Now}, nil
}

// Issue signs a token for actor, valid for TokenTTL.
func (s *Signer) Issue(actor Actor) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   actor.ID,
		CuID:     actor.CuID,
		UserName: actor.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry, and returns the actor the
// token was issued for.
func (s *Signer) Verify(tokenString string) (Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Actor{}, err
	}
	if claims.Subject == "" {
		return Actor{}, errors.New("token has no subject")
	}
	return Actor{ID: claims.Subject, CuID: claims.CuID, UserName: claims.UserName}, nil
}
