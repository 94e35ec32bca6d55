package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml; charset=utf-8"
)

// MessageResponse is the error body shared by every gateway endpoint
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON writes v as the response body with the given status
func JSON(ctx *fasthttp.RequestCtx, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType(ContentTypeJSON)
		ctx.SetBodyString(`{"message":"Internal server error"}`)
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(ContentTypeJSON)
	ctx.SetBody(body)
}

// JSONMessage writes a {"message": ...} body
func JSONMessage(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	JSON(ctx, statusCode, MessageResponse{Message: message})
}

// XML writes an already encoded XML document
func XML(ctx *fasthttp.RequestCtx, statusCode int, body []byte) {
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(ContentTypeXML)
	ctx.SetBody(body)
}

// NoStore marks the response as uncacheable by browsers and shared caches
func NoStore(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")
}
