package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/orderledger/internal/coordinator"
	"github.com/jcmexdev/orderledger/internal/inventory"
	"github.com/jcmexdev/orderledger/internal/reporting"
	"github.com/jcmexdev/orderledger/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ledger := inventory.NewLedger(s, time.Second)
	coord := coordinator.New(s, ledger)
	reports := reporting.NewService(s, nil, 0)

	srv := httptest.NewServer(NewRouter(NewHandler(coord, s, ledger, reports)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createCustomer(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := post(t, srv, "/customers", map[string]any{
		"name":  "Nadia",
		"email": uuid.NewString() + "@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func createProduct(t *testing.T, srv *httptest.Server, price string, stock int) string {
	t.Helper()
	resp, body := post(t, srv, "/products", map[string]any{
		"name":  "widget",
		"price": price,
		"stock": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv)
	prod := createProduct(t, srv, "19.99", 10)

	resp, body := post(t, srv, "/orders", map[string]any{
		"customer_id": cust,
		"items":       []map[string]any{{"product_id": prod, "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "79.96", body["total_amount"])
	orderID := body["id"].(string)

	// The order is readable back with its line.
	resp, raw := get(t, srv, "/orders/"+orderID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order OrderResponse
	require.NoError(t, json.Unmarshal(raw, &order))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "19.99", order.Items[0].UnitPrice)
	assert.Equal(t, 4, order.Items[0].Quantity)

	// Stock came down.
	resp, raw = get(t, srv, "/products/"+prod)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product ProductResponse
	require.NoError(t, json.Unmarshal(raw, &product))
	assert.Equal(t, 6, product.Stock)
}

func TestPlaceOrderStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv)
	prod := createProduct(t, srv, "5.00", 2)

	cases := []struct {
		name string
		body map[string]any
		code int
		err  string
	}{
		{
			name: "empty order",
			body: map[string]any{"customer_id": cust},
			code: http.StatusBadRequest,
			err:  "empty_order",
		},
		{
			name: "zero quantity",
			body: map[string]any{
				"customer_id": cust,
				"items":       []map[string]any{{"product_id": prod, "quantity": 0}},
			},
			code: http.StatusBadRequest,
			err:  "constraint_violation",
		},
		{
			name: "unknown product",
			body: map[string]any{
				"customer_id": cust,
				"items":       []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}},
			},
			code: http.StatusNotFound,
			err:  "product_not_found",
		},
		{
			name: "unknown customer",
			body: map[string]any{
				"customer_id": uuid.NewString(),
				"items":       []map[string]any{{"product_id": prod, "quantity": 1}},
			},
			code: http.StatusNotFound,
			err:  "customer_not_found",
		},
		{
			name: "insufficient stock",
			body: map[string]any{
				"customer_id": cust,
				"items":       []map[string]any{{"product_id": prod, "quantity": 3}},
			},
			code: http.StatusConflict,
			err:  "insufficient_stock",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := post(t, srv, "/orders", tc.body)
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.Equal(t, tc.err, body["error"])
		})
	}
}

func TestGetOrderNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := get(t, srv, "/orders/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRestockEndpoint(t *testing.T) {
	srv := newTestServer(t)
	prod := createProduct(t, srv, "5.00", 3)

	resp, body := post(t, srv, "/products/"+prod+"/restock", map[string]any{"quantity": 7})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), body["stock"])
}

func TestReportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv)
	prod := createProduct(t, srv, "100.00", 50)

	resp, _ := post(t, srv, "/orders", map[string]any{
		"customer_id": cust,
		"order_date":  "2026-05-10T12:00:00Z",
		"items":       []map[string]any{{"product_id": prod, "quantity": 6}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := get(t, srv, "/reports/daily-revenue?date=2026-05-10&tz=UTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rev DailyRevenueResponse
	require.NoError(t, json.Unmarshal(raw, &rev))
	assert.Equal(t, "600.00", rev.Revenue)

	resp, raw = get(t, srv, "/reports/top-products?year=2026&month=5&tz=UTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var top []TopProductRow
	require.NoError(t, json.Unmarshal(raw, &top))
	require.Len(t, top, 1)
	assert.Equal(t, prod, top[0].ProductID)
	assert.Equal(t, int64(6), top[0].Units)

	resp, raw = get(t, srv, "/reports/high-value-customers?year=2026&month=5&tz=UTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hv []HighValueCustomerRow
	require.NoError(t, json.Unmarshal(raw, &hv))
	require.Len(t, hv, 1)
	assert.Equal(t, cust, hv[0].CustomerID)
	assert.Equal(t, "600.00", hv[0].Total)
}

func TestReportsRequireTimezoneParam(t *testing.T) {
	srv := newTestServer(t)

	resp, raw := get(t, srv, "/reports/daily-revenue?date=2026-05-10")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &errResp))
	assert.Equal(t, "timezone_required", errResp.Error)
}

func TestReportsRejectBadPeriod(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := get(t, srv, "/reports/top-products?year=2026&month=13&tz=UTC")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
