package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleManager = "manager"
	RoleArtist  = "artist"
	RoleAdmin   = "admin"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no subject")
	ErrEmptyJWTSecret = errors.New("jwt secret cannot be empty")
)

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	Subject string
	Email   string
	Role    string
}

type Verifier interface {
	Verify(tokenString string) (*Principal, error)
}

type verifier struct {
	keyfunc   jwt.Keyfunc
	methods   []string
	issuer    string
	audience  string
	roleClaim string
}

// NewJWKSVerifier verifies RS/ES-signed tokens against the provider's JWKS,
// refreshing the key set in the background.
func NewJWKSVerifier(jwksURL, issuer, audience, roleClaim string) (Verifier, error) {
	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks: %w", err)
	}
	return &verifier{
		keyfunc:   k.Keyfunc,
		methods:   []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"},
		issuer:    issuer,
		audience:  audience,
		roleClaim: roleClaim,
	}, nil
}

// NewHMACVerifier verifies HS256 tokens signed with secret. Local development only.
func NewHMACVerifier(secret, issuer, audience, roleClaim string) (Verifier, error) {
	if secret == "" {
		return nil, ErrEmptyJWTSecret
	}
	return &verifier{
		keyfunc: func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		methods:   []string{jwt.SigningMethodHS256.Alg()},
		issuer:    issuer,
		audience:  audience,
		roleClaim: roleClaim,
	}, nil
}

func (v *verifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}

	p := &Principal{Subject: sub}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	p.Role = roleFromClaims(claims, v.roleClaim)
	return p, nil
}

// roleFromClaims accepts the role as a string or as the first known role in a list.
func roleFromClaims(claims jwt.MapClaims, name string) string {
	switch r := claims[name].(type) {
	case string:
		return r
	case []interface{}:
		for _, item := range r {
			s, ok := item.(string)
			if !ok {
				continue
			}
			switch s {
			case RoleAdmin, RoleManager, RoleArtist:
				return s
			}
		}
	}
	return ""
}

// GenerateToken signs an HS256 token accepted by NewHMACVerifier.
func GenerateToken(subject, email, role, secret, issuer, audience string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptyJWTSecret
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
