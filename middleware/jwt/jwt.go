package jwt

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrWrongTokenType   = errors.New("token has wrong type")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims JWT 声明
type Claims struct {
	UserID    uint   `json:"user_id"`
	UserName  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type TokenManager struct {
	secret     []byte
	accessDur  time.Duration
	refreshDur time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessMinutes, refreshHours int) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessDur:  time.Duration(accessMinutes) * time.Minute,
		refreshDur: time.Duration(refreshHours) * time.Hour,
		now:        time.Now,
	}
}

func (tm *TokenManager) GenerateTokenPair(userID uint, username, role string) (*TokenPair, error) {
	access, err := tm.sign(userID, username, role, TokenTypeAccess, tm.accessDur)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.sign(userID, username, role, TokenTypeRefresh, tm.refreshDur)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (tm *TokenManager) GenerateAccessToken(userID uint, username, role string) (string, error) {
	return tm.sign(userID, username, role, TokenTypeAccess, tm.accessDur)
}

func (tm *TokenManager) sign(userID uint, username, role, tokenType string, ttl time.Duration) (string, error) {
	now := tm.now()

	claims := Claims{
		UserID:    userID,
		UserName:  username,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseAccessToken validates signature, lifetime and that the token is an access token.
func (tm *TokenManager) ParseAccessToken(tokenString string) (*Claims, error) {
	return tm.parse(tokenString, TokenTypeAccess)
}

// ParseRefreshToken validates signature, lifetime and that the token is a refresh token.
func (tm *TokenManager) ParseRefreshToken(tokenString string) (*Claims, error) {
	return tm.parse(tokenString, TokenTypeRefresh)
}

func (tm *TokenManager) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

