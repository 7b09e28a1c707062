package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

// AuthService guards the admin gate: it verifies the shared admin password
// and issues short-lived tokens that authorize user registration.
type AuthService interface {
	VerifyAdmin(password string) (string, error)
	ValidateToken(token string) error
}

type authService struct {
	passwordHash []byte
	jwtSecret    []byte
	tokenTTL     time.Duration
}

// NewAuthService hashes the configured admin password once at startup so the
// plaintext is not kept around for comparisons.
func NewAuthService(adminPassword, jwtSecret string, tokenTTL time.Duration) (AuthService, error) {
	adminPassword = strings.TrimSpace(adminPassword)
	if adminPassword == "" {
		return nil, fmt.Errorf("admin password is required")
	}
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	return &authService{
		passwordHash: hash,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
	}, nil
}

func (s *authService) VerifyAdmin(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(strings.TrimSpace(password))); err != nil {
		return "", fmt.Errorf("admin password mismatch: %w", domain.ErrUnauthorized)
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid admin token: %w", domain.ErrUnauthorized)
	}
	return nil
}
