package preview

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/common/httputil"
	"github.com/edgecomet/revalidator/internal/common/requestid"
	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/pkg/types"
)

// DefaultCookieName is the draft mode cookie read by the page renderer
const DefaultCookieName = "__draft_mode"

// MissingParamsResponse is the 400 body of a preview request without token, category or id
type MissingParamsResponse struct {
	Message     string `json:"message"`
	HasToken    bool   `json:"hasToken"`
	HasCategory bool   `json:"hasCategory"`
	HasID       bool   `json:"hasId"`
}

// Session is one preview request. It lives for the request only and is never stored.
type Session struct {
	Token    string
	Category string
	ID       int64
	Locale   string
}

// TargetPath is the draft page the caller is redirected to
func (s *Session) TargetPath(resolver *locale.Resolver) string {
	path := "/" + url.PathEscape(s.Category) + "/" + strconv.FormatInt(s.ID, 10)
	if s.Locale != "" && resolver != nil {
		path = resolver.Localize(path, s.Locale)
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Add("preview", "true")
	args.Add("token", s.Token)
	args.Add("preview_id", strconv.FormatInt(s.ID, 10))
	return path + "?" + args.String()
}

// ParseSession reads the preview query parameters
func ParseSession(ctx *fasthttp.RequestCtx, resolver *locale.Resolver) (*Session, error) {
	args := ctx.QueryArgs()
	s := &Session{
		Token:    strings.TrimSpace(string(args.Peek("token"))),
		Category: strings.Trim(strings.TrimSpace(string(args.Peek("category"))), "/"),
		Locale:   strings.TrimSpace(string(args.Peek("locale"))),
	}
	rawID := strings.TrimSpace(string(args.Peek("id")))

	if s.Token == "" || s.Category == "" || rawID == "" {
		return nil, &types.ValidationError{
			Message: "Missing required parameters",
			Fields: map[string]bool{
				"hasToken":    s.Token != "",
				"hasCategory": s.Category != "",
				"hasId":       rawID != "",
			},
		}
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, &types.ValidationError{Message: "Parameter id must be a positive integer"}
	}
	s.ID = id

	if s.Locale != "" && (resolver == nil || !resolver.Supports(s.Locale)) {
		return nil, &types.ValidationError{Message: "Unsupported locale: " + s.Locale}
	}
	return s, nil
}

// Handler serves /api/preview and /api/preview/exit
type Handler struct {
	validator    TokenValidator
	resolver     *locale.Resolver
	cookieName   string
	secureCookie bool
	timeout      time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewHandler(cfg configtypes.PreviewConfig, validator TokenValidator, resolver *locale.Resolver, m *metrics.Metrics, logger *zap.Logger) *Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	secure := true
	if cfg.SecureCookie != nil {
		secure = *cfg.SecureCookie
	}
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = DefaultValidateTimeout
	}

	return &Handler{
		validator:    validator,
		resolver:     resolver,
		cookieName:   cookieName,
		secureCookie: secure,
		timeout:      timeout,
		metrics:      m,
		logger:       logger,
	}
}

// HandlePreview validates the token and redirects into draft mode
func (h *Handler) HandlePreview(ctx *fasthttp.RequestCtx) {
	reqID := requestid.FromRequest(ctx)
	logger := h.logger.With(zap.String("request_id", reqID))
	httputil.NoStore(ctx)

	session, err := ParseSession(ctx, h.resolver)
	if err != nil {
		h.metrics.RecordPreview("bad_request")
		h.writeValidationError(ctx, err)
		return
	}

	vctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.validator.Validate(vctx, session.Token); err != nil {
		logger.Info("Preview token rejected",
			zap.String("category", session.Category),
			zap.Int64("id", session.ID),
			zap.Error(err))
		h.metrics.RecordPreview("unauthorized")
		httputil.JSONMessage(ctx, fasthttp.StatusUnauthorized, types.ErrInvalidToken.Message)
		return
	}

	target := session.TargetPath(h.resolver)
	h.setDraftCookie(ctx, uuid.NewString(), false)
	redirect(ctx, target)

	h.metrics.RecordPreview("success")
	logger.Info("Preview session started",
		zap.String("category", session.Category),
		zap.Int64("id", session.ID),
		zap.String("locale", session.Locale))
}

// HandleExit clears the draft cookie and sends the caller home
func (h *Handler) HandleExit(ctx *fasthttp.RequestCtx) {
	httputil.NoStore(ctx)
	h.setDraftCookie(ctx, "", true)
	redirect(ctx, "/")
	h.metrics.RecordPreview("exit")
}

// redirect answers 307 with a site-relative Location
func redirect(ctx *fasthttp.RequestCtx, target string) {
	ctx.Response.Header.Set("Location", target)
	ctx.SetStatusCode(fasthttp.StatusTemporaryRedirect)
}

func (h *Handler) setDraftCookie(ctx *fasthttp.RequestCtx, value string, expire bool) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(h.cookieName)
	c.SetValue(value)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSecure(h.secureCookie)
	if h.secureCookie {
		c.SetSameSite(fasthttp.CookieSameSiteNoneMode)
	} else {
		c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	}
	if expire {
		c.SetExpire(fasthttp.CookieExpireDelete)
	}
	ctx.Response.Header.SetCookie(c)
}

func (h *Handler) writeValidationError(ctx *fasthttp.RequestCtx, err error) {
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		httputil.JSONMessage(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if verr.Fields == nil {
		httputil.JSONMessage(ctx, fasthttp.StatusBadRequest, verr.Message)
		return
	}
	httputil.JSON(ctx, fasthttp.StatusBadRequest, MissingParamsResponse{
		Message:     verr.Message,
		HasToken:    verr.Fields["hasToken"],
		HasCategory: verr.Fields["hasCategory"],
		HasID:       verr.Fields["hasId"],
	})
}
