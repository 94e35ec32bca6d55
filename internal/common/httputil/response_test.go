package httputil

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestJSONMessage(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	JSONMessage(ctx, fasthttp.StatusUnauthorized, "Invalid secret")

	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, ContentTypeJSON, string(ctx.Response.Header.ContentType()))

	var body map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, map[string]string{"message": "Invalid secret"}, body)
}

func TestJSON_MarshalFailure(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	JSON(ctx, fasthttp.StatusOK, math.Inf(1))

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"message":"Internal server error"}`, string(ctx.Response.Body()))
}

func TestXML(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	XML(ctx, fasthttp.StatusOK, []byte("<urlset></urlset>"))

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, ContentTypeXML, string(ctx.Response.Header.ContentType()))
	assert.Equal(t, "<urlset></urlset>", string(ctx.Response.Body()))
}

func TestNoStore(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NoStore(ctx)

	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", string(ctx.Response.Header.Peek("Cache-Control")))
	assert.Equal(t, "no-cache", string(ctx.Response.Header.Peek("Pragma")))
	assert.Equal(t, "0", string(ctx.Response.Header.Peek("Expires")))
}
