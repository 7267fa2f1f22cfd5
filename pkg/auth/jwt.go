// Package auth 把调用方凭证解析为稳定的用户 id
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity 凭证 -> 用户 id
type Identity interface {
	Resolve(token string) (string, error)
}

// Claims 令牌载荷，Subject 为用户 id
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWT HS256 签发与校验
type JWT struct {
	secret []byte
	issuer string
	expire time.Duration
	now    func() time.Time
}

func NewJWT(secret, issuer string, expire time.Duration) *JWT {
	if expire <= 0 {
		expire = 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), issuer: issuer, expire: expire, now: time.Now}
}

// Issue 为用户签发令牌，返回令牌与过期时间
func (j *JWT) Issue(userID, username string) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.expire)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Resolve 只接受 HS256
func (j *JWT) Resolve(token string) (string, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
