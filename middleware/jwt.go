package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "beastline"

// ErrBadToken covers every way a presented token can be unusable:
// bad signature, wrong issuer, expired, or malformed claims.
var ErrBadToken = errors.New("auth: token rejected")

// PlayerClaims is the JWT payload for a logged-in player. Username rides
// along so WS handlers can label sessions without a DB round trip.
type PlayerClaims struct {
	AccountID int64  `json:"aid"`
	Username  string `json:"uname"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed player token valid for ttl.
func IssueToken(accountID int64, username, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &PlayerClaims{
		AccountID: accountID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a player token and returns its claims.
func ParseToken(tokenStr, secret string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PlayerClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("%w: signing method %v", ErrBadToken, t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid || claims.AccountID == 0 {
		return nil, ErrBadToken
	}
	return claims, nil
}

// SessionKey is the cache key under which a live token is registered.
// A token that parses but has no session entry has been logged out.
func SessionKey(token string) string {
	return "session:" + token
}
