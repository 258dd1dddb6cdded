package token

import (
	"errors"
	"fmt"
	"time"

	"gamelobby/coordinator/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Generate creates a new session JWT whose subject is the user's uid.
func Generate(uid string) (string, error) {
	claims := jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour * 24 * 7).Unix(), // Token expires in 7 days
		"iat": time.Now().Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return t.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ParseUID validates a session token and returns the uid it carries.
func ParseUID(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return "", errors.New("invalid token")
	}
	uid, ok := claims["sub"].(string)
	if !ok || uid == "" {
		return "", errors.New("token missing subject")
	}
	return uid, nil
}
