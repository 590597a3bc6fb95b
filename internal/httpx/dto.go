package httpx

// Request/response shapes. Money travels as two-decimal strings so nothing
// on the wire round-trips through floating point.

type PlaceOrderRequest struct {
	CustomerID string              `json:"customer_id"`
	OrderDate  string              `json:"order_date,omitempty"` // RFC3339; empty means "now"
	Items      []PlaceOrderItemDTO `json:"items"`
}

type PlaceOrderItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	OrderDate   string              `json:"order_date"`
	TotalAmount string              `json:"total_amount"`
	Items       []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	CategoryID  *string `json:"category_id,omitempty"`
	Price       string  `json:"price"`
	Stock       int     `json:"stock"`
}

type ProductResponse struct {
	ID          string  `json:"id"`
	CategoryID  *string `json:"category_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       string  `json:"price"`
	Stock       int     `json:"stock"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CustomerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type DailyRevenueResponse struct {
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
	Revenue  string `json:"revenue"`
}

type TopProductRow struct {
	ProductID string `json:"product_id"`
	Units     int64  `json:"units"`
}

type HighValueCustomerRow struct {
	CustomerID string `json:"customer_id"`
	Total      string `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
