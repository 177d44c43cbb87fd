package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sandali-perera/library-server/internal/config"
)

// Manager signs and verifies the two session tokens: a short-lived access
// token sent in the Authorization header and a longer-lived refresh token
// kept in an HTTP-only cookie. Secrets and lifetimes come from the config;
// the clock is swappable so expiry can be tested deterministically.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	Now           func() time.Time
}

func NewManager(cfg config.Auth) *Manager {
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		Now:           time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) GenerateAccessToken(userID string) (string, error) {
	return m.generate(userID, m.accessSecret, m.accessTTL)
}

func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	return m.generate(userID, m.refreshSecret, m.refreshTTL)
}

func (m *Manager) generate(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := m.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccessToken returns the user id carried by a valid access token.
func (m *Manager) VerifyAccessToken(tokenStr string) (string, error) {
	return m.verify(tokenStr, m.accessSecret)
}

// VerifyRefreshToken returns the user id carried by a valid refresh token.
func (m *Manager) VerifyRefreshToken(tokenStr string) (string, error) {
	return m.verify(tokenStr, m.refreshSecret)
}

func (m *Manager) verify(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.Now() }))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}
	return userID, nil
}
