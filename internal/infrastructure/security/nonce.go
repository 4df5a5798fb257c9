package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// NonceAction is the only action nonces are issued for.
const NonceAction = "ct_log_pii_risk"

var ErrInvalidNonce = errors.New("invalid nonce")

// NonceIssuer signs and verifies short-lived HS256 nonces bound to an action.
type NonceIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceIssuer creates an issuer. ttl <= 0 defaults to 12 hours.
func NewNonceIssuer(secret string, ttl time.Duration) *NonceIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &NonceIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a nonce for action.
func (n *NonceIssuer) Issue(action string) (string, error) {
	now := n.now().UTC()
	claims := jwt.MapClaims{
		"action": action,
		"iat":    now.Unix(),
		"exp":    now.Add(n.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(n.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, nil
}

// Verify checks that nonce was issued by n for action and has not expired.
func (n *NonceIssuer) Verify(nonce, action string) error {
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.Parse(nonce, func(token *jwt.Token) (any, error) {
		return n.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidNonce
	}
	if got, _ := claims["action"].(string); got != action {
		return fmt.Errorf("%w: action mismatch", ErrInvalidNonce)
	}
	return nil
}
