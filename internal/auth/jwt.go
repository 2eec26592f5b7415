package auth

import (
	"context"
	"errors"
	"time"

	"lexpost/internal/apperr"
	"lexpost/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// UserContext is the verified identity behind a bearer token.
type UserContext struct {
	ID    uint        `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// IdentityProvider verifies a bearer token with the external identity service.
type IdentityProvider interface {
	GetUserContext(ctx context.Context, bearerToken string) (*UserContext, error)
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// JWTProvider verifies HS256 tokens signed by the identity provider with a shared secret.
type JWTProvider struct {
	secret []byte
	issuer string
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

func (p *JWTProvider) GetUserContext(_ context.Context, tokenString string) (*UserContext, error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return nil, apperr.Auth("invalid or expired token").Wrap(err)
	}
	if claims.UserID == 0 || claims.Email == "" {
		return nil, apperr.Auth("token is missing identity claims")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		role = domain.RoleUser
	}
	return &UserContext{ID: claims.UserID, Email: claims.Email, Role: role}, nil
}

func (p *JWTProvider) parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateAccessToken signs a token the way the identity provider does.
// Used for local development and tests only.
func GenerateAccessToken(secret, issuer string, userID uint, email string, role domain.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
