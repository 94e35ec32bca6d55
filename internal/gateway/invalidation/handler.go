package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/clientip"
	"github.com/edgecomet/revalidator/internal/common/httputil"
	"github.com/edgecomet/revalidator/internal/common/requestid"
	"github.com/edgecomet/revalidator/internal/gateway/audit"
	"github.com/edgecomet/revalidator/internal/gateway/auth"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/pkg/types"
)

// FullSiteAction is echoed by the operator triggered GET refresh
const FullSiteAction = "full_site"

// Mapper computes the scope of an event
type Mapper interface {
	Map(ev types.InvalidationEvent) *types.InvalidationScope
	FullSite() *types.InvalidationScope
}

// Handler serves /api/revalidate
type Handler struct {
	auth     *auth.Authenticator
	mapper   Mapper
	executor *Executor
	audit    audit.Emitter
	clientIP *clientip.Extractor
	metrics  *metrics.Metrics
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
}

// HandlerOptions carries the optional collaborators of a Handler
type HandlerOptions struct {
	Audit    audit.Emitter
	ClientIP *clientip.Extractor
	Metrics  *metrics.Metrics
	Timeout  time.Duration
}

func NewHandler(a *auth.Authenticator, mapper Mapper, executor *Executor, opts HandlerOptions, logger *zap.Logger) *Handler {
	if opts.Audit == nil {
		opts.Audit = audit.NoopEmitter{}
	}
	if opts.ClientIP == nil {
		opts.ClientIP = clientip.NewExtractor(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Handler{
		auth:     a,
		mapper:   mapper,
		executor: executor,
		audit:    opts.Audit,
		clientIP: opts.ClientIP,
		metrics:  opts.Metrics,
		validate: validator.New(),
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// HandleWebhook processes POST /api/revalidate from the CMS
func (h *Handler) HandleWebhook(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	reqID := requestid.FromRequest(ctx)
	logger := h.logger.With(zap.String("request_id", reqID))
	record := audit.NewRecord(reqID, h.clientIP.Extract(ctx), "webhook", nil)

	if err := h.auth.AuthenticateHeader(ctx); err != nil {
		h.rejectAuth(ctx, logger, record, err, start)
		return
	}

	var payload types.WebhookPayload
	if err := h.decode(ctx.PostBody(), &payload); err != nil {
		logger.Warn("Rejected revalidation payload", zap.Error(err))
		h.metrics.RecordWebhook("invalid", "bad_request")
		httputil.JSONMessage(ctx, fasthttp.StatusBadRequest, err.Error())
		h.audit.Emit(record.Finish(fasthttp.StatusBadRequest, time.Since(start), err))
		return
	}
	record = audit.NewRecord(reqID, record.ClientIP, "webhook", &payload)

	event := payload.Event()
	sc := h.mapper.Map(event)
	record.WithScope(sc)

	logger.Info("Revalidation requested",
		zap.String("action", string(event.Action)),
		zap.String("resource_type", string(event.ResourceType)),
		zap.String("slug", event.Slug),
		zap.Int("tags", len(sc.Tags())),
		zap.Int("paths", len(sc.Paths())))

	result, err := h.apply(sc)
	duration := time.Since(start)
	if err != nil {
		h.fail(ctx, logger, record, string(event.Action), result, err, duration)
		return
	}

	h.metrics.RecordWebhook(string(event.Action), "success")
	httputil.JSON(ctx, fasthttp.StatusOK, types.WebhookResponse{
		Success:     true,
		Revalidated: true,
		Action:      payload.Action,
		PostType:    payload.PostType,
		Slug:        payload.Slug,
		PostID:      payload.PostID,
		PostName:    payload.PostName,
		DurationMs:  duration.Milliseconds(),
	})
	h.audit.Emit(record.Finish(fasthttp.StatusOK, duration, nil))
}

// HandleFullSite processes GET /api/revalidate?secret=... and refreshes every cached page
func (h *Handler) HandleFullSite(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	reqID := requestid.FromRequest(ctx)
	logger := h.logger.With(zap.String("request_id", reqID))
	record := audit.NewRecord(reqID, h.clientIP.Extract(ctx), "manual", &types.WebhookPayload{Action: FullSiteAction})

	if err := h.auth.AuthenticateQuery(ctx); err != nil {
		h.rejectAuth(ctx, logger, record, err, start)
		return
	}

	sc := h.mapper.FullSite()
	record.WithScope(sc)
	logger.Info("Full site revalidation requested", zap.Int("tags", len(sc.Tags())))

	result, err := h.apply(sc)
	duration := time.Since(start)
	if err != nil {
		h.fail(ctx, logger, record, FullSiteAction, result, err, duration)
		return
	}

	h.metrics.RecordWebhook(FullSiteAction, "success")
	httputil.JSON(ctx, fasthttp.StatusOK, types.WebhookResponse{
		Success:     true,
		Revalidated: true,
		Action:      FullSiteAction,
		DurationMs:  duration.Milliseconds(),
	})
	h.audit.Emit(record.Finish(fasthttp.StatusOK, duration, nil))
}

func (h *Handler) apply(sc *types.InvalidationScope) (types.InvalidationResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.executor.Apply(ctx, sc)
}

func (h *Handler) decode(body []byte, payload *types.WebhookPayload) error {
	if len(body) == 0 {
		return &types.ValidationError{Message: "Request body is required"}
	}
	if err := json.Unmarshal(body, payload); err != nil {
		return &types.ValidationError{Message: "Invalid JSON body: " + err.Error()}
	}
	if err := h.validate.Struct(payload); err != nil {
		return &types.ValidationError{Message: "Missing required field: action"}
	}
	return nil
}

func (h *Handler) rejectAuth(ctx *fasthttp.RequestCtx, logger *zap.Logger, record *audit.Record, err error, start time.Time) {
	status := fasthttp.StatusUnauthorized
	var cfgErr *types.ConfigurationError
	if errors.As(err, &cfgErr) {
		status = fasthttp.StatusInternalServerError
		logger.Error("Revalidation secret is not configured")
	} else {
		logger.Warn("Revalidation rejected", zap.String("reason", err.Error()))
	}

	action := record.Action
	if action == "" {
		action = string(types.ActionUnknown)
	}
	h.metrics.RecordWebhook(action, "unauthorized")
	httputil.JSONMessage(ctx, status, err.Error())
	h.audit.Emit(record.Finish(status, time.Since(start), err))
}

func (h *Handler) fail(ctx *fasthttp.RequestCtx, logger *zap.Logger, record *audit.Record, action string, result types.InvalidationResult, err error, duration time.Duration) {
	logger.Error("Revalidation failed",
		zap.Int("tags_invalidated", result.TagsInvalidated),
		zap.Int("paths_invalidated", result.PathsInvalidated),
		zap.Error(err))

	h.metrics.RecordWebhook(action, "failed")
	httputil.JSON(ctx, fasthttp.StatusInternalServerError, types.WebhookFailure{
		Success:          false,
		Error:            err.Error(),
		TagsInvalidated:  result.TagsInvalidated,
		PathsInvalidated: result.PathsInvalidated,
		DurationMs:       duration.Milliseconds(),
	})
	h.audit.Emit(record.Finish(fasthttp.StatusInternalServerError, duration, err))
}
