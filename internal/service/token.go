package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal владелец access токена.
type Principal struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// TokenVerifier проверяет access токены, выпущенные сервисом авторизации.
// Сам сервис токены не выпускает.
type TokenVerifier struct {
	accessSecret []byte
}

// NewTokenVerifier создаёт проверяющего с общим HS256 секретом.
func NewTokenVerifier(accessSecret string) *TokenVerifier {
	return &TokenVerifier{accessSecret: []byte(accessSecret)}
}

// ParseAccess извлекает пользователя и компанию из access токена.
func (v *TokenVerifier) ParseAccess(token string) (*Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}

	company, ok := claims["company_id"].(string)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	companyID, err := uuid.Parse(company)
	if err != nil {
		return nil, err
	}

	return &Principal{UserID: userID, CompanyID: companyID}, nil
}
