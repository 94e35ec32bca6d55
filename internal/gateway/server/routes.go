package server

import (
	"github.com/valyala/fasthttp"

	"github.com/edgecomet/revalidator/internal/gateway/invalidation"
	"github.com/edgecomet/revalidator/internal/gateway/preview"
	"github.com/edgecomet/revalidator/internal/gateway/sitemap"
)

// Handlers groups the endpoint handlers of the gateway
type Handlers struct {
	Invalidation *invalidation.Handler
	Preview      *preview.Handler
	Sitemap      *sitemap.Handler
}

// RegisterRoutes wires the public endpoints
func (s *Server) RegisterRoutes(h Handlers) {
	if h.Invalidation != nil {
		s.RegisterHandler(fasthttp.MethodPost, PathRevalidate, h.Invalidation.HandleWebhook)
		s.RegisterHandler(fasthttp.MethodGet, PathRevalidate, h.Invalidation.HandleFullSite)
	}
	if h.Preview != nil {
		s.RegisterHandler(fasthttp.MethodGet, PathPreview, h.Preview.HandlePreview)
		s.RegisterHandler(fasthttp.MethodGet, PathPreviewExit, h.Preview.HandleExit)
	}
	if h.Sitemap != nil {
		s.RegisterSitemaps(h.Sitemap)
	}
}
