package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/pkg/types"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = 100
	DefaultMaxPages = 200
)

// Client queries the WPGraphQL endpoint of the CMS
type Client struct {
	endpoint   string
	authToken  string
	timeout    time.Duration
	pageSize   int
	maxPages   int
	httpClient *fasthttp.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewClient(cfg configtypes.CMSConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &Client{
		endpoint:  cfg.GraphQLURL,
		authToken: cfg.AuthToken,
		timeout:   timeout,
		pageSize:  pageSize,
		maxPages:  maxPages,
		httpClient: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,

			MaxIdleConnDuration: 30 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

// SetHTTPClient replaces the transport, used to dial in-memory listeners in tests
func (c *Client) SetHTTPClient(hc *fasthttp.Client) {
	c.httpClient = hc
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type connection[N any] struct {
	PageInfo pageInfo `json:"pageInfo"`
	Nodes    []N      `json:"nodes"`
}

// LanguageCode converts a locale into the WPGraphQL LanguageCodeEnum form, e.g. "pt-br" -> "PT_BR"
func LanguageCode(locale string) string {
	return strings.ToUpper(strings.ReplaceAll(locale, "-", "_"))
}

// Documents returns a pager over the static pages of a locale
func (c *Client) Documents(locale string) *Pager[Document] {
	return NewPager[Document](func(ctx context.Context, after string) (Page[Document], error) {
		conn, err := fetchConnection[documentNode](ctx, c, types.CollectionDocuments, locale, after)
		if err != nil {
			return Page[Document]{}, err
		}
		items := make([]Document, 0, len(conn.Nodes))
		for _, n := range conn.Nodes {
			items = append(items, n.toDocument())
		}
		return Page[Document]{Items: items, HasNextPage: conn.PageInfo.HasNextPage, EndCursor: conn.PageInfo.EndCursor}, nil
	}, c.maxPages)
}

// Articles returns a pager over the posts of a locale, newest first
func (c *Client) Articles(locale string) *Pager[Article] {
	return NewPager[Article](func(ctx context.Context, after string) (Page[Article], error) {
		conn, err := fetchConnection[articleNode](ctx, c, types.CollectionArticles, locale, after)
		if err != nil {
			return Page[Article]{}, err
		}
		items := make([]Article, 0, len(conn.Nodes))
		for _, n := range conn.Nodes {
			items = append(items, n.toArticle())
		}
		return Page[Article]{Items: items, HasNextPage: conn.PageInfo.HasNextPage, EndCursor: conn.PageInfo.EndCursor}, nil
	}, c.maxPages)
}

// Categories returns a pager over the categories of a locale
func (c *Client) Categories(locale string) *Pager[Term] {
	return c.terms(types.CollectionCategories, locale)
}

// Tags returns a pager over the tags of a locale
func (c *Client) Tags(locale string) *Pager[Term] {
	return c.terms(types.CollectionTags, locale)
}

func (c *Client) terms(collection types.Collection, locale string) *Pager[Term] {
	return NewPager[Term](func(ctx context.Context, after string) (Page[Term], error) {
		conn, err := fetchConnection[Term](ctx, c, collection, locale, after)
		if err != nil {
			return Page[Term]{}, err
		}
		return Page[Term]{Items: conn.Nodes, HasNextPage: conn.PageInfo.HasNextPage, EndCursor: conn.PageInfo.EndCursor}, nil
	}, c.maxPages)
}

func fetchConnection[N any](ctx context.Context, c *Client, collection types.Collection, locale, after string) (connection[N], error) {
	var conn connection[N]

	q, ok := collectionQueries[collection]
	if !ok {
		return conn, fmt.Errorf("unknown collection %q", collection)
	}

	vars := map[string]interface{}{
		"first":    c.pageSize,
		"language": LanguageCode(locale),
	}
	if after != "" {
		vars["after"] = after
	}

	start := time.Now()
	raw, err := c.query(ctx, string(collection), q.query, vars, q.field)
	c.metrics.RecordCMSFetch(string(collection), err, time.Since(start))
	if err != nil {
		return conn, err
	}

	if err := json.Unmarshal(raw, &conn); err != nil {
		return conn, &types.UpstreamFetchError{Operation: string(collection), Err: fmt.Errorf("failed to decode %s connection: %w", q.field, err)}
	}
	return conn, nil
}

// query posts one GraphQL operation and returns the raw value of data.<field>
func (c *Client) query(ctx context.Context, operation, query string, vars map[string]interface{}, field string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.UpstreamFetchError{Operation: operation, Err: err}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s query: %w", operation, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("CMS request failed",
			zap.String("operation", operation),
			zap.Error(err))
		return nil, &types.UpstreamFetchError{Operation: operation, Err: err}
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		c.logger.Warn("CMS returned non-200",
			zap.String("operation", operation),
			zap.Int("status", status))
		return nil, &types.UpstreamFetchError{Operation: operation, Status: status}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, &types.UpstreamFetchError{Operation: operation, Err: fmt.Errorf("invalid GraphQL response: %w", err)}
	}
	if len(envelope.Errors) > 0 {
		return nil, &types.UpstreamFetchError{Operation: operation, Err: errors.New(envelope.Errors[0].Message)}
	}

	raw, ok := envelope.Data[field]
	if !ok || string(raw) == "null" {
		return nil, &types.UpstreamFetchError{Operation: operation, Err: fmt.Errorf("response has no %s", field)}
	}
	return raw, nil
}
