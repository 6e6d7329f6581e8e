package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Validator checks bearer tokens against a remote JWKS. Nil validators are
// valid and mean auth is disabled.
type Validator struct {
	jwks   *keyfunc.JWKS
	issuer string
}

// NewValidator fetches the JWKS and keeps it refreshed in the background.
func NewValidator(ctx context.Context, issuer, jwksURL string) (*Validator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Msg("JWKS refresh failed")
		},
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("jwks_url", jwksURL).Str("issuer", issuer).Msg("auth validator initialized")
	return &Validator{jwks: jwks, issuer: issuer}, nil
}

// Ready reports whether the JWKS has been fetched.
func (v *Validator) Ready() bool {
	return v != nil && v.jwks != nil
}

// Middleware validates the Authorization header on MCP routes. Health and
// metrics endpoints stay open for probes and scrapers.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/health/auth" || path == "/metrics" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, v.jwks.Keyfunc, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"RS256", "ES256"}))
		if err != nil || !token.Valid {
			log.Warn().Err(err).Str("path", path).Msg("rejected request with invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("auth_token", token)
		c.Next()
	}
}
