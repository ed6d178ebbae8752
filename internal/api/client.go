package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	resty "github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"coffeemasters/internal/cache"
	"coffeemasters/internal/models"
)

const (
	RetryCount       = 2
	RetryWaitTime    = 100 * time.Millisecond
	RetryWaitTimeMax = time.Second
	userAgent        = "coffeemasters-offline/1.0"
)

// ErrRejected means the storefront answered but refused the request.
var ErrRejected = errors.New("request rejected by storefront")

// Config points the client at the storefront.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	OrdersPath string
	HealthPath string
}

// Client is the single network path to the storefront. Transport failures are
// reported as cache.ErrNetworkUnavailable.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := &Client{cfg: cfg, logger: logger}
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(RetryCount).
		SetRetryWaitTime(RetryWaitTime).
		SetRetryMaxWaitTime(RetryWaitTimeMax).
		AddRetryCondition(func(response *resty.Response, err error) bool {
			if err != nil || response == nil {
				return false
			}
			switch response.StatusCode() {
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			default:
				return false
			}
		})
	c.http.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
		c.logger.Debug("HTTP",
			zap.String("method", response.Request.Method),
			zap.String("url", response.Request.URL),
			zap.Int("status", response.StatusCode()),
			zap.Duration("duration", response.Time()))
		return nil
	})
	return c
}

// GetClient returns the underlying HTTP client.
func (c *Client) GetClient() *http.Client {
	return c.http.GetClient()
}

func networkError(method, url string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", cache.ErrNetworkUnavailable, method, url, err)
}

// Fetch performs a resource request. Any HTTP status is a response, only transport
// failures are errors.
func (c *Client) Fetch(ctx context.Context, req *cache.Request) (*cache.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.http.R().SetContext(ctx)
	for name, values := range req.Header {
		r.SetHeaderMultiValues(map[string][]string{name: values})
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, networkError(method, req.URL, err)
	}
	return &cache.Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header().Clone(),
		Body:       resp.Body(),
		Source:     cache.SourceNetwork,
	}, nil
}

// SubmitOrder posts the order. The idempotency key lets the storefront recognise
// a replay of an order it already accepted.
func (c *Client) SubmitOrder(ctx context.Context, order *models.Order, idempotencyKey string) (*models.Order, error) {
	var created models.Order
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(order).
		SetResult(&created).
		Post(c.cfg.OrdersPath)
	if err != nil {
		return nil, networkError(http.MethodPost, c.cfg.OrdersPath, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: order %s: status %d: %s", ErrRejected, order.ID, resp.StatusCode(), resp.String())
	}
	return &created, nil
}

// Ping checks that the storefront answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(c.cfg.HealthPath)
	if err != nil {
		return networkError(http.MethodGet, c.cfg.HealthPath, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: health check: status %d", ErrRejected, resp.StatusCode())
	}
	return nil
}
