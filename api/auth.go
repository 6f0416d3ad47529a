package api

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"taskboard-api/domain"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envAuthTestMode     = "AUTH_TEST_MODE"
	envTestJWTSecret    = "TEST_JWT_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

// Auth verifies bearer credentials issued by the identity provider and
// yields the provider's stable user id (the token subject). It is the only
// point where credentials are inspected; everything downstream works with
// the verified actor id.
type Auth struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string

	testSecret []byte
	parser     *jwt.Parser

	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates a verifier against the provider's JWKS. With
// AUTH_TEST_MODE=1 tokens are instead verified using the HS256 shared secret
// in TEST_JWT_SECRET.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	a := &Auth{jwks: jwks, audience: audience, issuer: issuer, keyCacheTTL: defaultJWKSCacheTTL}
	if raw := os.Getenv(envJWKSCacheTTL); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			panic("invalid JWKS_CACHE_TTL")
		}
		a.keyCacheTTL = d
	}
	if os.Getenv(envAuthTestMode) == "1" {
		secret := os.Getenv(envTestJWTSecret)
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when AUTH_TEST_MODE=1")
		}
		a.testSecret = []byte(secret)
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
		return a
	}
	a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	return a
}

// UserIDFromAuthHeader verifies the Authorization header's bearer token and
// returns its subject.
func (a *Auth) UserIDFromAuthHeader(header string) (string, error) {
	token, err := bearerToken(header)
	if err != nil {
		return "", err
	}
	return a.VerifyToken(token)
}

// VerifyToken validates a raw JWT and returns its subject.
func (a *Auth) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", unauthf("missing credential")
	}
	parsed, err := a.parser.Parse(token, a.keyForToken)
	if err != nil {
		return "", unauthf("invalid token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", unauthf("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", unauthf("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", unauthf("token not valid yet")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, false) {
		return "", unauthf("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, false) {
		return "", unauthf("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", unauthf("missing subject")
	}
	return sub, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.testSecret != nil {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.testSecret, nil
	}
	if a.jwks == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", unauthf("missing authorization header")
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", unauthf("bad authorization header")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if strings.Count(token, ".") != 2 {
		return "", unauthf("bad authorization header")
	}
	return token, nil
}

func unauthf(format string, args ...any) error {
	return domain.Errf(domain.CodeUnauthenticated, format, args...)
}
