package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qawafel-crm/pkg/config"
)

// UserClaims represents the JWT claims carried by the session and auth-token cookies.
// A phone-only token carries Phone and no UserID.
type UserClaims struct {
	UserID uint   `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Phone  string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// HasUser reports whether the claims identify a CRM user.
func (c *UserClaims) HasUser() bool {
	return c != nil && c.UserID != 0
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(config *config.JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: config,
		now:    time.Now,
	}
}

// SessionTTL returns the lifetime of session tokens
func (j *JWTUtil) SessionTTL() time.Duration {
	return j.config.SessionTTL
}

// PhoneTokenTTL returns the lifetime of phone verification tokens
func (j *JWTUtil) PhoneTokenTTL() time.Duration {
	return j.config.PhoneTokenTTL
}

// GenerateSessionToken creates a session token for a user
func (j *JWTUtil) GenerateSessionToken(userID uint, email, name, role string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}
	return j.sign(UserClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
	}, j.config.SessionTTL)
}

// GeneratePhoneToken creates an auth-token for a verified phone. The user
// claims are filled when an approved user owns the phone.
func (j *JWTUtil) GeneratePhoneToken(phone string, user *UserClaims) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}
	claims := UserClaims{Phone: phone}
	if user != nil {
		claims.UserID = user.UserID
		claims.Email = user.Email
		claims.Name = user.Name
		claims.Role = user.Role
	}
	return j.sign(claims, j.config.PhoneTokenTTL)
}

func (j *JWTUtil) sign(claims UserClaims, ttl time.Duration) (string, error) {
	now := j.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
