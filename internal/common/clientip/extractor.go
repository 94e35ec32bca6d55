package clientip

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"
)

// Extractor resolves the caller address for audit records and logs.
// Headers are trusted in order; only list headers set by your own proxy.
type Extractor struct {
	headers []string
}

func NewExtractor(headers []string) *Extractor {
	return &Extractor{headers: headers}
}

// Extract returns the first address found in the trusted headers, else the peer address
func (e *Extractor) Extract(ctx *fasthttp.RequestCtx) string {
	for _, header := range e.headers {
		if ip := firstAddress(string(ctx.Request.Header.Peek(header))); ip != "" {
			return ip
		}
	}
	return fromHostPort(ctx.RemoteAddr().String())
}

// firstAddress takes the left-most entry of a comma separated forwarding header
func firstAddress(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = value[:idx]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return normalize(value)
}

func fromHostPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return normalize(host)
	}
	return normalize(addr)
}

// normalize strips brackets and zones and canonicalizes parseable addresses
func normalize(raw string) string {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if idx := strings.IndexByte(raw, '%'); idx >= 0 {
		raw = raw[:idx]
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
