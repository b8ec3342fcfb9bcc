package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PassClaims carry a granted record to a browser. The subject is the
// record key and exp is the record expiry.
type PassClaims struct {
	jwt.RegisteredClaims
}

// WholeSeconds cuts the expiry to the second precision a pass carries.
func (r Record) WholeSeconds() Record {
	r.Expiry -= r.Expiry % 1000
	return r
}

// IssuePass signs a pass for the record stored under key. The pass expires
// at rec.WholeSeconds().Expiry.
func IssuePass(secret, key string, rec Record) (string, error) {
	rec = rec.WholeSeconds()
	claims := &PassClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			ExpiresAt: jwt.NewNumericDate(time.UnixMilli(rec.Expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyPass validates a pass for key and returns the record it carries.
func VerifyPass(secret, tokenStr, key string) (Record, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PassClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithSubject(key), jwt.WithExpirationRequired())
	if err != nil {
		return Record{}, fmt.Errorf("parse pass: %w", err)
	}
	claims, ok := token.Claims.(*PassClaims)
	if !ok || !token.Valid {
		return Record{}, fmt.Errorf("invalid pass")
	}
	return Record{Authorized: true, Expiry: claims.ExpiresAt.UnixMilli()}, nil
}

// CookieName is the pass cookie of a scope, gp_{court}_{side} with
// characters outside the cookie token set replaced.
func CookieName(s Scope) string {
	return "gp_" + cookieSafe(s.Court) + "_" + cookieSafe(s.Side)
}

func cookieSafe(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, v)
}
