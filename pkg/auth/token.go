package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
)

// clockSkew tolerates small drift between API replicas.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// MintAccessToken signs an HS256 access token valid for cfg.ExpirationMinutes.
// The jti doubles as the refresh-session key, so callers usually pass one.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkMintInput(cfg, payload); err != nil {
		return "", err
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute

	token := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func checkMintInput(cfg config.JWTConfig, payload AccessTokenPayload) error {
	var problems []string
	if cfg.Secret == "" {
		problems = append(problems, "jwt secret is required")
	}
	if cfg.Issuer == "" {
		problems = append(problems, "jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		problems = append(problems, "jwt expiration minutes must be positive")
	}
	if payload.UserID == uuid.Nil {
		problems = append(problems, "user id is required")
	}
	if !payload.Role.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid user role %q", payload.Role))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ParseAccessToken verifies signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return parseToken(cfg, raw, jwt.WithExpirationRequired(), jwt.WithLeeway(clockSkew))
}

// ParseAccessTokenAllowExpired verifies the signature and issuer but not the
// time claims. Refresh uses it to recover the jti of an expired token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return parseToken(cfg, raw, jwt.WithoutClaimsValidation())
}

func parseToken(cfg config.JWTConfig, raw string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	parser := jwt.NewParser(append(opts,
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
	)...)

	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	// WithoutClaimsValidation also skips the issuer check
	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role claim %q", claims.Role)
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user id")
	}
	return claims, nil
}
