package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Header carries the request id in both directions
const Header = "X-Request-ID"

const (
	// MaxRequestIDLength matches the length of a UUID string
	MaxRequestIDLength = 36
	// PrefixLength is the random prefix put in front of caller supplied ids
	PrefixLength = 5
	// MaxCustomIDLength is what is left of a caller id after the prefix and its hyphen
	MaxCustomIDLength = MaxRequestIDLength - PrefixLength - 1
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// GenerateRequestID derives a request id from an optional caller supplied id.
// The caller id is reduced to [a-zA-Z0-9-] and prefixed with 5 random hex characters.
// An empty result falls back to a UUID.
func GenerateRequestID(customID string) string {
	sanitized := invalidChars.ReplaceAllString(strings.ReplaceAll(customID, " ", "-"), "")
	sanitized = strings.Trim(hyphenRuns.ReplaceAllString(sanitized, "-"), "-")
	if sanitized == "" {
		return uuid.New().String()
	}
	if len(sanitized) > MaxCustomIDLength {
		sanitized = sanitized[:MaxCustomIDLength]
	}
	return randomPrefix() + "-" + sanitized
}

// FromRequest returns the id for an inbound request and echoes it on the response.
// The id is stored on the context so later calls for the same request agree.
func FromRequest(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(userValueKey).(string); ok && id != "" {
		return id
	}
	id := GenerateRequestID(string(ctx.Request.Header.Peek(Header)))
	ctx.SetUserValue(userValueKey, id)
	ctx.Response.Header.Set(Header, id)
	return id
}

const userValueKey = "request_id"

func randomPrefix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()[:PrefixLength]
	}
	return hex.EncodeToString(buf)[:PrefixLength]
}
