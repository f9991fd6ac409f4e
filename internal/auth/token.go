package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenManager проверяет access-токены, выпущенные сервисом аутентификации.
// Выпуск нужен dev-режиму и тестам.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccess выпускает access-токен с клеймами sub и role.
func (m *TokenManager) GenerateAccess(actor valueobject.Actor) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.accessTTL)
	claims := jwt.MapClaims{
		"sub":  actor.ID.String(),
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess извлекает Actor из access-токена.
func (m *TokenManager) ParseAccess(token string) (valueobject.Actor, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return valueobject.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return valueobject.Actor{}, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return valueobject.Actor{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return valueobject.Actor{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	r := valueobject.Role(role)
	if !r.IsValid() {
		return valueobject.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return valueobject.Actor{ID: userID, Role: r}, nil
}
