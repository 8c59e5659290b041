package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims matches the access tokens the hotel backend issues: the subject is
// the user's email. Role is present on tokens minted with extra claims.
type Claims struct {
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser reads bearer tokens. With a secret it verifies HS256
// signatures; without one it only decodes, leaving verification to the
// backend the token is forwarded to.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	p := &TokenParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

func (p *TokenParser) Verifies() bool { return p.secret != nil }

func (p *TokenParser) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if p.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode token"), ErrInvalidToken)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return nil, errors.Mark(errors.New("token expired"), ErrInvalidToken)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "verify token"), ErrInvalidToken)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Sign mints a token with the parser's secret. Used by tools and tests.
func (p *TokenParser) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(p.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}
