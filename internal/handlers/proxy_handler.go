package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"coffeemasters/internal/cache"
)

// HeaderCacheSource tells the client which layer satisfied a proxied request.
const HeaderCacheSource = "X-Cache-Source"

// ResourceFetcher satisfies resource requests, falling back offline.
type ResourceFetcher interface {
	Fetch(ctx context.Context, req *cache.Request) (*cache.Response, error)
}

// ProxyHandler passes storefront resource requests through the cache.
type ProxyHandler struct {
	cache  ResourceFetcher
	logger *zap.Logger
}

func NewProxyHandler(fetcher ResourceFetcher, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{cache: fetcher, logger: logger}
}

// RegisterRoutes must run after every other route since it matches everything.
func (h *ProxyHandler) RegisterRoutes(router fiber.Router) {
	router.All("/*", h.HandleResource)
}

var hopHeaders = map[string]struct{}{
	"Connection":        {},
	"Content-Length":    {},
	"Host":              {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
}

// HandleResource copies everything it hands to the cache: a background revalidation
// keeps the request after the handler returns and fiber reuses its buffers.
func (h *ProxyHandler) HandleResource(c *fiber.Ctx) error {
	req := &cache.Request{
		Method: utils.CopyString(c.Method()),
		URL:    utils.CopyString(c.OriginalURL()),
		Header: http.Header{},
		Body:   bytes.Clone(c.Body()),
	}
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := http.CanonicalHeaderKey(string(key))
		if _, hop := hopHeaders[name]; !hop {
			req.Header.Add(name, string(value))
		}
	})

	resp, err := h.cache.Fetch(c.UserContext(), req)
	if err != nil {
		h.logger.Debug("resource request aborted", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"message": "Request aborted",
			"error":   err.Error(),
		})
	}

	for name, values := range resp.Header {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(name)]; hop {
			continue
		}
		for _, v := range values {
			c.Append(name, v)
		}
	}
	c.Set(HeaderCacheSource, string(resp.Source))
	return c.Status(resp.StatusCode).Send(resp.Body)
}
