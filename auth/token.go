package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

// Claims is the data carried inside a Zipper JWT. Tokens are minted by
// the account service; this core only verifies them with the shared
// HMAC secret.
type Claims struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens presented at the socket handshake and
// on the history endpoints.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates signature and expiry, returning the
// verified identity. Any failure maps to ErrUnauthorized; callers never
// see jwt internals.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, apperrors.ErrUnauthorized
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, apperrors.ErrUnauthorized
	}

	return domain.Identity{UserID: claims.UserID, Nickname: claims.Nickname}, nil
}

// Mint creates a signed token for the given identity. Used by tests and
// tooling; production tokens come from the account service sharing the
// same secret.
func Mint(secret []byte, identity domain.Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   identity.UserID,
		Nickname: identity.Nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "zipper",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
