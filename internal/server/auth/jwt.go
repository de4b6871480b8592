// Package auth implements JWT issuing and verification for device sessions.
package auth

import (
	"errors"
	"time"

	"github.com/fieldsync/fieldsync/internal/syncerr"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the device and workspace a
// token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID    string
	WorkspaceID string
}

func GenerateToken(deviceID, workspaceID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		DeviceID:    deviceID,
		WorkspaceID: workspaceID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of tokenString and returns
// its claims. An expired token yields syncerr.ErrTokenExpired so the
// transport layer can tell the client to refresh.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, syncerr.ErrTokenExpired
		}
		return nil, err
	}

	if !token.Valid {
		return nil, syncerr.ErrUnauthorized
	}

	return claims, nil
}
