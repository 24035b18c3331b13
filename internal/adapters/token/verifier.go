package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

type HS256Verifier struct {
	secret []byte
}

// NewHS256Verifier verifies HS256 access tokens signed with secret. Tokens
// must carry "sub" and "exp".
func NewHS256Verifier(secret []byte) ports.TokenVerifier {
	return &HS256Verifier{secret: secret}
}

func (v *HS256Verifier) Verify(ctx context.Context, tokenString string) (*ports.TokenPayload, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("subject not found in claims")
	}
	name, _ := claims["name"].(string)

	return &ports.TokenPayload{Subject: sub, Name: name}, nil
}
