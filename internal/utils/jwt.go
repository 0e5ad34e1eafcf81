package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookClaims are the claims of a signed webhook call.
type WebhookClaims struct {
	Source string `json:"source"`
	jwt.RegisteredClaims
}

// GenerateWebhookToken signs a short-lived token for one webhook call.
func GenerateWebhookToken(secret, issuer, source string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &WebhookClaims{
		Source: source,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign webhook token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a webhook token signed with secretKey by issuer.
func ValidateToken(tokenString, secretKey, issuer string) (*WebhookClaims, error) {
	claims := &WebhookClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
