package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orderledger/internal/coordinator"
	"github.com/jcmexdev/orderledger/internal/inventory"
	"github.com/jcmexdev/orderledger/internal/reporting"
	"github.com/jcmexdev/orderledger/internal/store"
	"github.com/jcmexdev/orderledger/internal/store/sqlite"
)

// Handler exposes the core over HTTP. It maps transport shapes to domain
// calls and domain errors to status codes; no business rules live here.
type Handler struct {
	coord   *coordinator.Coordinator
	store   *sqlite.Store
	ledger  *inventory.Ledger
	reports *reporting.Service
}

// NewHandler wires the handler to the core components.
func NewHandler(c *coordinator.Coordinator, st *sqlite.Store, l *inventory.Ledger, rep *reporting.Service) *Handler {
	return &Handler{coord: c, store: st, ledger: l, reports: rep}
}

// PlaceOrder submits one order placement.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_id is required")
		return
	}

	var orderDate time.Time
	if req.OrderDate != "" {
		t, err := time.Parse(time.RFC3339, req.OrderDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_date", err.Error())
			return
		}
		orderDate = t
	}

	lines := make([]coordinator.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = coordinator.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	order, err := h.coord.PlaceOrder(r.Context(), coordinator.PlaceOrderRequest{
		CustomerID: req.CustomerID,
		OrderDate:  orderDate,
		Lines:      lines,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// GetOrder returns a committed order with its lines.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// CreateProduct registers a product with an initial price and stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_price", err.Error())
		return
	}

	p := &store.Product{
		ID:            uuid.NewString(),
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         price,
		StockQuantity: req.Stock,
	}
	if err := h.store.CreateProduct(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapProduct(p))
}

// GetProduct returns a product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

// Restock increments a product's stock. It takes the same inventory lock a
// placement would, so restocks never race reservations.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	release, err := h.ledger.Acquire(r.Context(), []string{id})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer release()

	if err := h.store.AddStock(r.Context(), id, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

// CreateCustomer registers a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and email are required")
		return
	}

	c := &store.Customer{ID: uuid.NewString(), Name: req.Name, Email: req.Email}
	if err := h.store.CreateCustomer(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerResponse{ID: c.ID, Name: c.Name, Email: c.Email})
}

// DailyRevenue answers /reports/daily-revenue?date=YYYY-MM-DD&tz=Zone.
func (h *Handler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseTimezone(w, r)
	if !ok {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	revenue, err := h.reports.DailyRevenue(r.Context(), day, loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyRevenueResponse{
		Date:     day.Format("2006-01-02"),
		Timezone: loc.String(),
		Revenue:  revenue.StringFixed(2),
	})
}

// TopProducts answers /reports/top-products?year=&month=&tz=.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseTimezone(w, r)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	rows, err := h.reports.TopProducts(r.Context(), year, month, loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]TopProductRow, len(rows))
	for i, row := range rows {
		out[i] = TopProductRow{ProductID: row.ProductID, Units: row.Units}
	}
	writeJSON(w, http.StatusOK, out)
}

// HighValueCustomers answers /reports/high-value-customers?year=&month=&tz=&threshold=.
func (h *Handler) HighValueCustomers(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseTimezone(w, r)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_threshold", err.Error())
			return
		}
		threshold = t
	}

	rows, err := h.reports.HighValueCustomers(r.Context(), year, month, loc, threshold)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]HighValueCustomerRow, len(rows))
	for i, row := range rows {
		out[i] = HighValueCustomerRow{CustomerID: row.CustomerID, Total: row.Total.StringFixed(2)}
	}
	writeJSON(w, http.StatusOK, out)
}

func mapOrder(o *store.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = OrderItemResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		}
	}
	return OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		OrderDate:   o.OrderDate.UTC().Format(time.RFC3339),
		TotalAmount: o.TotalAmount.StringFixed(2),
		Items:       items,
	}
}

func mapProduct(p *store.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.StockQuantity,
	}
}

// parseTimezone requires an explicit tz query parameter; reports never assume
// an implicit timezone.
func parseTimezone(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	name := r.URL.Query().Get("tz")
	if name == "" {
		writeError(w, http.StatusBadRequest, "timezone_required", "tz query parameter is required (e.g. tz=UTC)")
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
		return nil, false
	}
	return loc, true
}

func parseYearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid_period", "year and month query parameters are required (e.g. year=2026&month=8)")
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// writeDomainError maps the error taxonomy onto status codes. Conflicts come
// back 409 after the coordinator has exhausted its internal retries.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrEmptyOrder):
		writeError(w, http.StatusBadRequest, "empty_order", err.Error())
	case errors.Is(err, store.ErrConstraintViolation):
		writeError(w, http.StatusBadRequest, "constraint_violation", err.Error())
	case errors.Is(err, store.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, store.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", err.Error())
	case errors.Is(err, store.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, store.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", err.Error())
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
