package web

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSalonTokens_IssueParse(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tokens, err := NewSalonTokens("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tokens.now = func() time.Time { return now }

	signed, expiresAt, err := tokens.Issue("sess-1", "kw", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expiresAt = %v", expiresAt)
	}
	claims, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.SessionID != "sess-1" || claims.Location != "kw" || claims.Issuer != SalonTokenIssuer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestSalonTokens_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tokens, _ := NewSalonTokens("s3cret", time.Hour)
	tokens.now = func() time.Time { return now }
	valid, _, _ := tokens.Issue("sess-1", "kw", now)

	other, _ := NewSalonTokens("different", time.Hour)
	foreign, _, _ := other.Issue("sess-1", "kw", now)

	expired, _, _ := tokens.Issue("sess-1", "kw", now.Add(-2*time.Hour))

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, SalonClaims{
		SessionID: "sess-1",
		Location:  "kw",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))

	noLocation, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, SalonClaims{
		SessionID: "sess-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    SalonTokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, SalonClaims{
		SessionID: "sess-1",
		Location:  "kw",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    SalonTokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"expired", expired},
		{"wrong issuer", wrongIssuer},
		{"missing location", noLocation},
		{"alg none", unsigned},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewSalonTokens_EmptySecret(t *testing.T) {
	if _, err := NewSalonTokens("", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("err = %v, want ErrEmptySecret", err)
	}
}
