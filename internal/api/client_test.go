package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coffeemasters/internal/api"
	"coffeemasters/internal/cache"
	"coffeemasters/internal/models"
)

const baseURL = "http://storefront.test"

func newClient(t *testing.T) *api.Client {
	t.Helper()
	c := api.NewClient(api.Config{
		BaseURL:    baseURL,
		Timeout:    time.Second,
		OrdersPath: "/api/orders",
		HealthPath: "/api/health",
	}, zaptest.NewLogger(t))

	httpmock.ActivateNonDefault(c.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestFetch(t *testing.T) {
	c := newClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/data/menu.json",
		httpmock.NewStringResponder(200, `[{"name":"Coffees"}]`).HeaderSet(http.Header{"Cache-Control": {"max-age=60"}}))
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/missing.png",
		httpmock.NewStringResponder(404, "not found"))

	resp, err := c.Fetch(context.Background(), cache.NewRequest(http.MethodGet, "/data/menu.json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"name":"Coffees"}]`, string(resp.Body))
	assert.Equal(t, "max-age=60", resp.Header.Get("Cache-Control"))
	assert.Equal(t, cache.SourceNetwork, resp.Source)

	// an HTTP error status is still a response
	resp, err = c.Fetch(context.Background(), cache.NewRequest(http.MethodGet, "/missing.png"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestFetch_TransportFailure(t *testing.T) {
	c := newClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/app.js",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Fetch(context.Background(), cache.NewRequest(http.MethodGet, "/app.js"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrNetworkUnavailable)
}

func TestSubmitOrder(t *testing.T) {
	c := newClient(t)

	var gotKey string
	var gotOrder models.Order
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/orders",
		func(req *http.Request) (*http.Response, error) {
			gotKey = req.Header.Get("Idempotency-Key")
			var order models.Order
			if err := json.NewDecoder(req.Body).Decode(&order); err != nil {
				return httpmock.NewStringResponse(400, err.Error()), nil
			}
			gotOrder = order
			order.ID = "srv-42"
			order.Status = models.OrderStatusPending
			return httpmock.NewJsonResponse(201, order)
		})

	order := &models.Order{
		ID:           "local_1700000000000_abc",
		Items:        []models.OrderItem{{ProductID: "p1", Name: "Latte", Price: 3.5, Quantity: 2}},
		Total:        7,
		CustomerInfo: models.CustomerInfo{Name: "Ada"},
		Status:       models.OrderStatusOfflinePending,
	}
	created, err := c.SubmitOrder(context.Background(), order, "outbox-123")
	require.NoError(t, err)
	assert.Equal(t, "outbox-123", gotKey)
	assert.Equal(t, order.ID, gotOrder.ID)
	assert.Equal(t, "srv-42", created.ID)
	assert.Equal(t, models.OrderStatusPending, created.Status)
}

func TestSubmitOrder_Failures(t *testing.T) {
	c := newClient(t)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/orders",
		httpmock.NewStringResponder(422, `{"message":"invalid order"}`))
	_, err := c.SubmitOrder(context.Background(), &models.Order{ID: "local_1"}, "k")
	assert.ErrorIs(t, err, api.ErrRejected)
	assert.NotErrorIs(t, err, cache.ErrNetworkUnavailable)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/orders",
		httpmock.NewErrorResponder(errors.New("no route to host")))
	_, err = c.SubmitOrder(context.Background(), &models.Order{ID: "local_1"}, "k")
	assert.ErrorIs(t, err, cache.ErrNetworkUnavailable)
}

func TestPing(t *testing.T) {
	c := newClient(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/api/health", httpmock.NewStringResponder(200, "ok"))
	assert.NoError(t, c.Ping(context.Background()))

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/api/health", httpmock.NewStringResponder(500, "down"))
	assert.ErrorIs(t, c.Ping(context.Background()), api.ErrRejected)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/api/health",
		httpmock.NewErrorResponder(errors.New("connection refused")))
	assert.ErrorIs(t, c.Ping(context.Background()), cache.ErrNetworkUnavailable)
}
