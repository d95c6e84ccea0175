package calendar

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidState is returned for a missing, forged or expired OAuth state parameter.
var ErrInvalidState = errors.New("invalid oauth state")

const stateTTL = 10 * time.Minute

type stateClaims struct {
	Host string `json:"host"`
	jwt.RegisteredClaims
}

// StateSigner binds the OAuth round trip to the host that started it.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner creates a signer using HMAC-SHA256 over secret.
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Sign returns a short-lived state token carrying host.
func (s *StateSigner) Sign(host string) (string, error) {
	now := s.now()
	claims := stateClaims{
		Host: host,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates a state token and returns its host.
func (s *StateSigner) Verify(state string) (string, error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", ErrInvalidState
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.Host == "" {
		return "", ErrInvalidState
	}
	return claims.Host, nil
}
