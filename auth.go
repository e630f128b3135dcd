package imageai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Songmu/flextime"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mashiike/imageai/transport"
)

// AccessTokenClaim carries the host API access token inside the session JWT.
const AccessTokenClaim = "access_token"

// Context keys for JWT authentication
type jwtContextKey struct{}
type jwtTokenContextKey struct{}

// GetJWTClaims retrieves JWT claims from the request context
func GetJWTClaims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(jwtContextKey{}).(jwt.MapClaims)
	return claims, ok
}

// GetJWTToken retrieves the raw JWT token string from the request context
func GetJWTToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(jwtTokenContextKey{}).(string)
	return token, ok
}

// GetJWTSubject retrieves the subject (sub) claim from JWT
func GetJWTSubject(ctx context.Context) (string, bool) {
	claims, ok := GetJWTClaims(ctx)
	if !ok {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	return sub, ok
}

// GetAccessToken returns the host API access token of the caller: the
// access_token claim when present, otherwise the bearer token itself.
func GetAccessToken(ctx context.Context) (string, bool) {
	if claims, ok := GetJWTClaims(ctx); ok {
		if token, ok := claims[AccessTokenClaim].(string); ok && token != "" {
			return token, true
		}
	}
	token, ok := GetJWTToken(ctx)
	return token, ok && token != ""
}

// WithJWT stores claims and the raw token in ctx, as Authenticate does.
func WithJWT(ctx context.Context, claims jwt.MapClaims, token string) context.Context {
	ctx = context.WithValue(ctx, jwtContextKey{}, claims)
	return context.WithValue(ctx, jwtTokenContextKey{}, token)
}

// JWTAuthenticator implements JWT (JSON Web Token) based authentication
type JWTAuthenticator struct {
	// SecretKey is used for HMAC signing methods (HS256, HS384, HS512)
	SecretKey []byte

	// SigningMethod specifies the JWT signing method (default: HS256)
	SigningMethod jwt.SigningMethod

	// Audience specifies the expected audience (aud) claim
	// If empty, audience validation is skipped
	Audience string

	// ValidateFunc allows custom validation of JWT claims
	// If nil, only signature, expiration, and audience are validated
	ValidateFunc func(claims jwt.MapClaims) error
}

var _ transport.Authenticator = (*JWTAuthenticator)(nil)

// NewJWTAuthenticator creates a new JWT authenticator with HMAC-SHA256
func NewJWTAuthenticator(secretKey []byte) *JWTAuthenticator {
	return &JWTAuthenticator{
		SecretKey:     secretKey,
		SigningMethod: jwt.SigningMethodHS256,
	}
}

// WithValidateFunc sets a custom validation function for JWT claims
func (j *JWTAuthenticator) WithValidateFunc(fn func(claims jwt.MapClaims) error) *JWTAuthenticator {
	j.ValidateFunc = fn
	return j
}

// WithSigningMethod sets the JWT signing method
func (j *JWTAuthenticator) WithSigningMethod(method jwt.SigningMethod) *JWTAuthenticator {
	j.SigningMethod = method
	return j
}

// WithAudience sets the expected audience for JWT validation
func (j *JWTAuthenticator) WithAudience(audience string) *JWTAuthenticator {
	j.Audience = audience
	return j
}

// Sign issues a token for claims with the authenticator's key, valid for ttl.
func (j *JWTAuthenticator) Sign(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := flextime.Now()
	c := jwt.MapClaims{"iat": now.Unix(), "exp": now.Add(ttl).Unix()}
	if j.Audience != "" {
		c["aud"] = j.Audience
	}
	for k, v := range claims {
		c[k] = v
	}
	return jwt.NewWithClaims(j.signingMethod(), c).SignedString(j.SecretKey)
}

func (j *JWTAuthenticator) signingMethod() jwt.SigningMethod {
	if j.SigningMethod == nil {
		return jwt.SigningMethodHS256
	}
	return j.SigningMethod
}

// Authenticate implements the transport.Authenticator interface
func (j *JWTAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*http.Request, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, transport.NewAuthErrorWithScheme(
			transport.AuthErrorCodeMissingCredentials,
			"missing Authorization header",
			"bearer",
		)
	}

	// Parse Bearer token
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return nil, transport.NewAuthErrorWithScheme(
			transport.AuthErrorCodeInvalidCredentials,
			"invalid Authorization header format",
			"bearer",
		)
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != j.signingMethod() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.SecretKey, nil
	}, jwt.WithTimeFunc(flextime.Now))
	if err != nil {
		code := transport.AuthErrorCodeInvalidCredentials
		msg := fmt.Sprintf("invalid JWT: %v", err)
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = transport.AuthErrorCodeExpiredCredentials
			msg = "JWT token has expired"
		}
		return nil, transport.NewAuthErrorWithScheme(code, msg, "bearer")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, transport.NewAuthErrorWithScheme(
			transport.AuthErrorCodeInvalidCredentials,
			"invalid JWT claims",
			"bearer",
		)
	}

	// Validate audience (aud claim) if specified
	if j.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || len(aud) == 0 {
			return nil, transport.NewAuthErrorWithScheme(
				transport.AuthErrorCodeInvalidCredentials,
				"missing audience claim",
				"bearer",
			)
		}
		var audienceValid bool
		for _, a := range aud {
			if a == j.Audience {
				audienceValid = true
				break
			}
		}
		if !audienceValid {
			return nil, transport.NewAuthErrorWithScheme(
				transport.AuthErrorCodeInvalidCredentials,
				"invalid audience",
				"bearer",
			)
		}
	}

	// Custom validation if provided
	if j.ValidateFunc != nil {
		if err := j.ValidateFunc(claims); err != nil {
			return nil, transport.NewAuthErrorWithScheme(
				transport.AuthErrorCodeInvalidCredentials,
				fmt.Sprintf("JWT validation failed: %v", err),
				"bearer",
			)
		}
	}

	return r.WithContext(WithJWT(r.Context(), claims, tokenString)), nil
}
