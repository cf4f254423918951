package auth

import (
	"context"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// HMACGate verifies HS256 bearer tokens minted by the account service.
// Only the HMAC family is accepted; a token signed with any other algorithm
// is rejected regardless of its payload.
type HMACGate struct {
	secret []byte
}

func NewHMACGate(secret []byte) *HMACGate {
	return &HMACGate{secret: secret}
}

func (g *HMACGate) Verify(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, errors.Wrap(ErrInvalidToken, "claims type mismatch")
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		return Identity{}, errors.Wrap(ErrInvalidToken, "missing sub claim")
	}
	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)

	return Identity{ID: id, Username: username, Email: email}, nil
}

// Token signs an HS256 token for the given identity. The gateway never mints
// tokens in production; this exists for tests and local tooling.
func Token(secret []byte, identity Identity, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub":      identity.ID,
		"username": identity.Username,
		"email":    identity.Email,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
