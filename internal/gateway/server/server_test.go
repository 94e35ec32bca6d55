package server_test

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/gateway/auth"
	"github.com/edgecomet/revalidator/internal/gateway/cms"
	"github.com/edgecomet/revalidator/internal/gateway/invalidation"
	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/internal/gateway/preview"
	"github.com/edgecomet/revalidator/internal/gateway/rendercache"
	"github.com/edgecomet/revalidator/internal/gateway/scope"
	"github.com/edgecomet/revalidator/internal/gateway/server"
	"github.com/edgecomet/revalidator/internal/gateway/sitemap"
	"github.com/edgecomet/revalidator/pkg/types"
)

const testSecret = "s3cret"

// fakeCMS answers the GraphQL enumeration queries and the preview validation endpoint
func fakeCMS(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/preview/validate":
		var req struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal(ctx.PostBody(), &req)
		if req.Token != "t1" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		ctx.SetBodyString(`{"valid":true}`)
	case "/graphql":
		body := string(ctx.PostBody())
		ctx.SetContentType("application/json")
		switch {
		case strings.Contains(body, "posts("):
			ctx.SetBodyString(`{"data":{"posts":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[
				{"slug":"hello-world","date":"2024-03-01T10:00:00","title":"Hello & welcome","categories":{"nodes":[{"slug":"news"}]}}]}}}`)
		case strings.Contains(body, "pages("):
			ctx.SetBodyString(`{"data":{"pages":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[{"slug":"terms","date":"2024-01-01T00:00:00"}]}}}`)
		case strings.Contains(body, "categories("):
			// category enumeration is down
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
		case strings.Contains(body, "tags("):
			ctx.SetBodyString(`{"data":{"tags":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[{"slug":"golang"}]}}}`)
		}
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type brokenStore struct {
	rendercache.Store
}

func (brokenStore) InvalidateTag(context.Context, string) error {
	return errors.New("backend unavailable")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("backend unavailable")
}

type response struct {
	status  int
	body    []byte
	headers map[string]string
}

var _ = Describe("Content gateway", func() {
	var (
		mr     *miniredis.Miniredis
		store  rendercache.Store
		cmsLn  *fasthttputil.InmemoryListener
		cmsSrv *fasthttp.Server
		gwLn   *fasthttputil.InmemoryListener
		gw     *server.Server
		client *fasthttp.Client

		start func(cache rendercache.Store)
		do    func(method, uri string, headers map[string]string, body string) response
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).ToNot(HaveOccurred())

		logger := zap.NewNop()
		store, err = rendercache.New(
			configtypes.RenderCacheConfig{Backend: configtypes.RenderCacheRedis, Channel: "rendercache:invalidate"},
			configtypes.RedisConfig{Addr: mr.Addr()},
			"gw-test", logger)
		Expect(err).ToNot(HaveOccurred())

		cmsLn = fasthttputil.NewInmemoryListener()
		cmsSrv = &fasthttp.Server{Handler: fakeCMS}
		go func() { _ = cmsSrv.Serve(cmsLn) }()
		cmsDial := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return cmsLn.Dial() }}

		start = func(cache rendercache.Store) {
			m := metrics.NewWithRegistry("test", prometheus.NewRegistry(), logger)
			resolver := locale.MustNewResolver("en", "en", "es", "ar")

			mapper, err := scope.NewMapper(resolver, scope.DefaultRules())
			Expect(err).ToNot(HaveOccurred())
			webhook := invalidation.NewHandler(
				auth.NewAuthenticator(testSecret),
				mapper,
				invalidation.NewExecutor(cache, m, logger),
				invalidation.HandlerOptions{Metrics: m, Timeout: 2 * time.Second},
				logger)

			validator := preview.NewHTTPValidator("http://cms.test/preview/validate", time.Second, logger)
			validator.SetHTTPClient(cmsDial)
			previewHandler := preview.NewHandler(configtypes.PreviewConfig{}, validator, resolver, m, logger)

			cmsClient := cms.NewClient(configtypes.CMSConfig{GraphQLURL: "http://cms.test/graphql"}, m, logger)
			cmsClient.SetHTTPClient(cmsDial)
			window := types.Duration(0)
			assembler := sitemap.NewAssembler(
				configtypes.SiteConfig{BaseURL: "https://example.com", Name: "Example"},
				configtypes.SitemapConfig{DefaultCategory: "news", NewsLimit: 10, NewsWindow: &window},
				cmsClient, resolver, logger)

			gw = server.New(configtypes.ServerConfig{Timeout: types.Duration(5 * time.Second), MaxBodySize: 1 << 20}, cache, m, logger)
			gw.RegisterRoutes(server.Handlers{
				Invalidation: webhook,
				Preview:      previewHandler,
				Sitemap:      sitemap.NewHandler(assembler, resolver, "https://example.com", cache, m, logger),
			})
			gw.RegisterHandler(fasthttp.MethodGet, "/boom", func(*fasthttp.RequestCtx) { panic("boom") })

			gwLn = fasthttputil.NewInmemoryListener()
			go func() { _ = gw.Serve(gwLn) }()
			client = &fasthttp.Client{Dial: func(string) (net.Conn, error) { return gwLn.Dial() }}
		}

		do = func(method, uri string, headers map[string]string, body string) response {
			req := fasthttp.AcquireRequest()
			defer fasthttp.ReleaseRequest(req)
			resp := fasthttp.AcquireResponse()
			defer fasthttp.ReleaseResponse(resp)

			req.SetRequestURI("http://gateway.test" + uri)
			req.Header.SetMethod(method)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			if body != "" {
				req.Header.SetContentType("application/json")
				req.SetBodyString(body)
			}
			Expect(client.DoTimeout(req, resp, 5*time.Second)).To(Succeed())

			out := response{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...), headers: map[string]string{}}
			resp.Header.VisitAll(func(k, v []byte) {
				out.headers[string(k)] = string(v)
			})
			return out
		}
	})

	AfterEach(func() {
		if gw != nil {
			_ = gw.Shutdown(context.Background())
		}
		_ = cmsSrv.Shutdown()
		_ = store.Close()
		mr.Close()
	})

	Describe("system endpoints", func() {
		It("reports health and readiness", func() {
			start(store)
			Expect(do("GET", "/health", nil, "").status).To(Equal(fasthttp.StatusOK))
			Expect(do("GET", "/ready", nil, "").status).To(Equal(fasthttp.StatusOK))
		})

		It("is not ready when the render cache is down", func() {
			start(brokenStore{store})
			Expect(do("GET", "/ready", nil, "").status).To(Equal(fasthttp.StatusServiceUnavailable))
		})

		It("answers 404 and 405 as JSON", func() {
			start(store)
			notFound := do("GET", "/nope", nil, "")
			Expect(notFound.status).To(Equal(fasthttp.StatusNotFound))
			Expect(string(notFound.body)).To(MatchJSON(`{"message":"Endpoint not found"}`))

			Expect(do("DELETE", "/api/revalidate", nil, "").status).To(Equal(fasthttp.StatusMethodNotAllowed))
			Expect(do("POST", "/sitemap.xml", nil, "").status).To(Equal(fasthttp.StatusMethodNotAllowed))
		})

		It("turns a handler panic into a 500 JSON body", func() {
			start(store)
			resp := do("GET", "/boom", map[string]string{"X-Request-ID": "trace-1"}, "")
			Expect(resp.status).To(Equal(fasthttp.StatusInternalServerError))
			Expect(string(resp.body)).To(MatchJSON(`{"message":"Internal server error"}`))
			Expect(resp.headers["X-Request-Id"]).To(HaveSuffix("-trace-1"))
		})
	})

	Describe("POST /api/revalidate", func() {
		BeforeEach(func() {
			start(store)
			ctx := context.Background()
			Expect(store.Put(ctx, "/news/hello-world", []string{"wordpress-article-hello-world"})).To(Succeed())
			Expect(store.Put(ctx, "/es/news/hello-world", []string{"wordpress-article-hello-world"})).To(Succeed())
			Expect(store.Put(ctx, "/about", []string{"wordpress-document-about"})).To(Succeed())
			Expect(store.Put(ctx, "/contact", []string{"wordpress-contact"})).To(Succeed())
			Expect(store.PutRoute(ctx, "/ar/sport/derby", "/ar/[category]/[slug]", []string{"wordpress-article-derby"})).To(Succeed())
		})

		It("marks the affected renders stale across locales", func() {
			resp := do("POST", "/api/revalidate", map[string]string{"x-secret": testSecret},
				`{"action":"update","post_type":"post","slug":"hello-world","post_id":12,"post_name":"Hello"}`)
			Expect(resp.status).To(Equal(fasthttp.StatusOK))

			var body types.WebhookResponse
			Expect(json.Unmarshal(resp.body, &body)).To(Succeed())
			Expect(body.Success).To(BeTrue())
			Expect(body.Revalidated).To(BeTrue())
			Expect(body.Slug).To(Equal("hello-world"))
			Expect(*body.PostID.Value).To(Equal(int64(12)))

			for _, path := range []string{"/news/hello-world", "/es/news/hello-world"} {
				entry, ok, err := store.Get(context.Background(), path)
				Expect(err).ToNot(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(entry.Stale).To(BeTrue(), path)
			}
			derby, _, err := store.Get(context.Background(), "/ar/sport/derby")
			Expect(err).ToNot(HaveOccurred())
			Expect(derby.Stale).To(BeTrue(), "article route template covers every article render")

			for _, path := range []string{"/about", "/contact"} {
				entry, _, err := store.Get(context.Background(), path)
				Expect(err).ToNot(HaveOccurred())
				Expect(entry.Stale).To(BeFalse(), path)
			}
		})

		It("rejects a wrong secret without touching the cache", func() {
			resp := do("POST", "/api/revalidate", map[string]string{"x-secret": "nope"}, `{"action":"update"}`)
			Expect(resp.status).To(Equal(fasthttp.StatusUnauthorized))
			Expect(string(resp.body)).To(MatchJSON(`{"message":"Invalid secret"}`))

			entry, _, err := store.Get(context.Background(), "/news/hello-world")
			Expect(err).ToNot(HaveOccurred())
			Expect(entry.Stale).To(BeFalse())
		})

		It("refreshes the whole site from the operator GET", func() {
			resp := do("GET", "/api/revalidate?secret="+testSecret, nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusOK))

			about, _, err := store.Get(context.Background(), "/about")
			Expect(err).ToNot(HaveOccurred())
			Expect(about.Stale).To(BeTrue())
		})
	})

	Describe("invalidation backend failure", func() {
		It("reports the partial result as a 500", func() {
			start(brokenStore{store})
			resp := do("POST", "/api/revalidate", map[string]string{"x-secret": testSecret}, `{"action":"menu_update"}`)
			Expect(resp.status).To(Equal(fasthttp.StatusInternalServerError))

			var body types.WebhookFailure
			Expect(json.Unmarshal(resp.body, &body)).To(Succeed())
			Expect(body.Success).To(BeFalse())
			Expect(body.Error).To(ContainSubstring("backend unavailable"))
			Expect(body.TagsInvalidated).To(Equal(0))
		})
	})

	Describe("GET /api/preview", func() {
		BeforeEach(func() { start(store) })

		It("redirects a valid token into draft mode", func() {
			resp := do("GET", "/api/preview?token=t1&category=news&id=42", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusTemporaryRedirect))
			Expect(resp.headers["Location"]).To(Equal("/news/42?preview=true&token=t1&preview_id=42"))
			Expect(resp.headers["Cache-Control"]).To(Equal("no-store, no-cache, must-revalidate, max-age=0"))
			Expect(resp.headers["Set-Cookie"]).To(ContainSubstring("__draft_mode="))
		})

		It("rejects an invalid token", func() {
			resp := do("GET", "/api/preview?token=bad&category=news&id=42", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusUnauthorized))
			Expect(string(resp.body)).To(MatchJSON(`{"message":"Invalid token"}`))
		})

		It("lists the missing parameters", func() {
			resp := do("GET", "/api/preview?token=t1&category=news", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusBadRequest))

			var body preview.MissingParamsResponse
			Expect(json.Unmarshal(resp.body, &body)).To(Succeed())
			Expect(body.HasID).To(BeFalse())
			Expect(body.HasToken).To(BeTrue())
		})
	})

	Describe("sitemaps", func() {
		type urlset struct {
			URLs []struct {
				Loc string `xml:"loc"`
			} `xml:"url"`
		}

		BeforeEach(func() { start(store) })

		It("serves a locale sitemap even when one collection is down", func() {
			resp := do("GET", "/es/sitemap.xml", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusOK))
			Expect(resp.headers["Content-Type"]).To(HavePrefix("application/xml"))

			var doc urlset
			Expect(xml.Unmarshal(resp.body, &doc)).To(Succeed())
			var locs []string
			for _, u := range doc.URLs {
				locs = append(locs, u.Loc)
			}
			Expect(locs).To(ContainElements(
				"https://example.com/es",
				"https://example.com/es/news/hello-world",
				"https://example.com/es/terms",
				"https://example.com/es/tag/golang",
			))
		})

		It("registers the rendered sitemap so invalidation reaches it", func() {
			Expect(do("GET", "/sitemap/en.xml", nil, "").status).To(Equal(fasthttp.StatusOK))

			entry, ok, err := store.Get(context.Background(), "/sitemap.xml")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(entry.Tags).To(ContainElement("wordpress-sitemap"))

			resp := do("POST", "/api/revalidate", map[string]string{"x-secret": testSecret},
				`{"action":"delete","post_type":"post","slug":"hello-world"}`)
			Expect(resp.status).To(Equal(fasthttp.StatusOK))

			entry, _, err = store.Get(context.Background(), "/sitemap.xml")
			Expect(err).ToNot(HaveOccurred())
			Expect(entry.Stale).To(BeTrue())
		})

		It("serves the news variant with escaped titles", func() {
			resp := do("GET", "/news-sitemap.xml", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusOK))
			Expect(string(resp.body)).To(ContainSubstring("<news:title>Hello &amp; welcome</news:title>"))
		})

		It("answers 404 for an unknown locale", func() {
			Expect(do("GET", "/sitemap/fr.xml", nil, "").status).To(Equal(fasthttp.StatusNotFound))
		})

		It("lists every locale in the index", func() {
			resp := do("GET", "/sitemap-index.xml", nil, "")
			Expect(resp.status).To(Equal(fasthttp.StatusOK))
			Expect(string(resp.body)).To(ContainSubstring("https://example.com/sitemap/ar.xml"))
		})
	})
})
