package generates

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidAccessToken = errors.New("invalid access token")

// JWTAccessClaims jwt claims. Subject carries the user id.
type JWTAccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// NewJWTAccessGenerate create to generate the jwt access token instance
func NewJWTAccessGenerate(key []byte, method jwt.SigningMethod) *JWTAccessGenerate {
	return &JWTAccessGenerate{SignedKey: key, SignedMethod: method}
}

// JWTAccessGenerate signs and verifies access tokens with a shared key.
type JWTAccessGenerate struct {
	SignedKey    []byte
	SignedMethod jwt.SigningMethod
}

// Token issues an access token for userID valid for ttl.
func (a *JWTAccessGenerate) Token(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(a.SignedMethod, claims).SignedString(a.SignedKey)
}

// Parse verifies signature and expiry and returns the claims.
func (a *JWTAccessGenerate) Parse(token string) (*JWTAccessClaims, error) {
	claims := &JWTAccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.SignedMethod.Alg() {
			return nil, errors.Wrapf(ErrInvalidAccessToken, "unexpected signing method %s", t.Method.Alg())
		}
		return a.SignedKey, nil
	}, jwt.WithValidMethods([]string{a.SignedMethod.Alg()}))
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidAccessToken)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}
