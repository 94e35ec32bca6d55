package auth

import (
	"crypto/subtle"

	"github.com/valyala/fasthttp"

	"github.com/edgecomet/revalidator/pkg/types"
)

// SecretHeader carries the shared revalidation secret on POST requests
const SecretHeader = "x-secret"

// Authenticate compares the caller's secret with the configured one.
// An empty configured secret is a server misconfiguration, never an open door.
func Authenticate(provided, configured string) error {
	if configured == "" {
		return types.ErrSecretNotConfigured
	}
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		return types.ErrInvalidSecret
	}
	return nil
}

// Authenticator checks requests against one configured secret
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// AuthenticateHeader validates the x-secret header
func (a *Authenticator) AuthenticateHeader(ctx *fasthttp.RequestCtx) error {
	return Authenticate(string(ctx.Request.Header.Peek(SecretHeader)), a.secret)
}

// AuthenticateQuery validates the secret query parameter used by GET /api/revalidate
func (a *Authenticator) AuthenticateQuery(ctx *fasthttp.RequestCtx) error {
	return Authenticate(string(ctx.QueryArgs().Peek("secret")), a.secret)
}
