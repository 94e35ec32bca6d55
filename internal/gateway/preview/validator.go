package preview

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/pkg/types"
)

const DefaultValidateTimeout = 5 * time.Second

// TokenValidator checks a preview token with the CMS.
// Every failure is reported as an *types.AuthenticationError matching types.ErrInvalidToken.
type TokenValidator interface {
	Validate(ctx context.Context, token string) error
}

// HTTPValidator posts the token to the CMS validation endpoint. Results are never cached.
type HTTPValidator struct {
	url        string
	timeout    time.Duration
	httpClient *fasthttp.Client
	logger     *zap.Logger
}

func NewHTTPValidator(url string, timeout time.Duration, logger *zap.Logger) *HTTPValidator {
	if timeout <= 0 {
		timeout = DefaultValidateTimeout
	}
	return &HTTPValidator{
		url:     url,
		timeout: timeout,
		httpClient: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		logger: logger,
	}
}

// SetHTTPClient replaces the transport, used to dial in-memory listeners in tests
func (v *HTTPValidator) SetHTTPClient(hc *fasthttp.Client) {
	v.httpClient = hc
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid *bool `json:"valid"`
}

func invalid(cause error) error {
	return &types.AuthenticationError{Message: types.ErrInvalidToken.Message, Cause: cause}
}

// Validate accepts the token when the endpoint answers 2xx, unless the body explicitly says {"valid": false}
func (v *HTTPValidator) Validate(ctx context.Context, token string) error {
	if token == "" {
		return types.ErrInvalidToken
	}
	if err := ctx.Err(); err != nil {
		return invalid(err)
	}

	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return invalid(err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(v.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.SetBody(body)

	deadline := time.Now().Add(v.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := v.httpClient.DoDeadline(req, resp, deadline); err != nil {
		v.logger.Warn("Preview token validation request failed", zap.Error(err))
		return invalid(&types.UpstreamFetchError{Operation: "preview validation", Err: err})
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		v.logger.Debug("Preview token rejected", zap.Int("status", status))
		return invalid(&types.UpstreamFetchError{Operation: "preview validation", Status: status})
	}

	var result validateResponse
	if err := json.Unmarshal(resp.Body(), &result); err == nil && result.Valid != nil && !*result.Valid {
		return types.ErrInvalidToken
	}
	return nil
}
