package jwtfactory

import (
	"time"

	"github.com/go-chi/jwtauth/v5"
)

type TokenFactory struct {
	tokenAuth           *jwtauth.JWTAuth
	tokenExpirationTime time.Duration
}

func New(tokenAuth *jwtauth.JWTAuth, tokenExpirationTime time.Duration) *TokenFactory {
	return &TokenFactory{
		tokenAuth:           tokenAuth,
		tokenExpirationTime: tokenExpirationTime,
	}
}

// Generate mints an access token scoped to one tenant and buyer account.
func (tf *TokenFactory) Generate(gamespaceID int64, accountID string) (string, error) {
	timeNow := time.Now()
	claims := map[string]any{
		"gamespace": gamespaceID,
		"account":   accountID,
		"exp":       timeNow.Add(tf.tokenExpirationTime).Unix(),
		"iat":       timeNow.Unix(),
	}
	_, tokenString, err := tf.tokenAuth.Encode(claims)
	return tokenString, err
}
