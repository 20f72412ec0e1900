package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SalonTokenIssuer is the iss claim of salon tablet tokens.
	SalonTokenIssuer = "clinic-salon"

	// DefaultSalonTokenTTL caps a tablet token at one working day. Inactivity
	// is enforced separately on the stored salon session.
	DefaultSalonTokenTTL = 12 * time.Hour
)

var (
	ErrEmptySecret  = errors.New("salon token secret is required")
	ErrInvalidToken = errors.New("invalid salon token")
)

// SalonClaims are the claims carried by a salon tablet token.
type SalonClaims struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
	jwt.RegisteredClaims
}

// SalonTokens issues and verifies HS256 salon tablet tokens.
type SalonTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSalonTokens creates a token issuer. ttl <= 0 selects DefaultSalonTokenTTL.
func NewSalonTokens(secret string, ttl time.Duration) (*SalonTokens, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultSalonTokenTTL
	}
	return &SalonTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the given salon session.
// PRE: sessionID and location are non-empty
// POST: Returns the signed token and its expiry
func (t *SalonTokens) Issue(sessionID, location string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	claims := SalonClaims{
		SessionID: sessionID,
		Location:  location,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    SalonTokenIssuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign salon token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature, issuer and expiry of a salon token.
// POST: Returns the claims or an error wrapping ErrInvalidToken
func (t *SalonTokens) Parse(token string) (SalonClaims, error) {
	var claims SalonClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(SalonTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return SalonClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.SessionID == "" || claims.Location == "" {
		return SalonClaims{}, ErrInvalidToken
	}
	return claims, nil
}
