// Package normalize converts raw Seller API detail records, whose key sets
// and nesting vary across upstream versions, into the stable internal
// posting schema. Parsing is lenient by contract: malformed input filters a
// record out, it never fails the run.
package normalize

// Posting is the stable internal record schema produced by normalization.
// A Posting is either fully formed or not produced at all.
type Posting struct {
	PostingNumber string `json:"posting_number"`
	OrderNumber   string `json:"order_number,omitempty"`

	Status   string `json:"status"`
	StatusRU string `json:"status_ru"`

	CreatedAt   string `json:"created_at,omitempty"`
	InProcessAt string `json:"in_process_at,omitempty"`

	Products  []ProductItem `json:"products"`
	Financial FinancialData `json:"financial_data"`
	Analytics AnalyticsData `json:"analytics_data"`
	Delivery  DeliveryData  `json:"delivery_data"`

	// Customer is an open, unvalidated bag merged from the upstream
	// customer and addressee sections, first non-empty value wins.
	Customer map[string]any `json:"customer"`
}

// ProductItem is one accepted line item. LineNumber is dense and 1-based,
// assigned at normalization time; Quantity is always positive.
type ProductItem struct {
	LineNumber    int     `json:"line_number"`
	SKU           int64   `json:"sku"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Total         float64 `json:"total"`
	PostingNumber string  `json:"posting_number"`
	OfferID       string  `json:"offer_id,omitempty"`
	CurrencyCode  string  `json:"currency_code"`
}

// FinancialData is derived purely from the accepted line items. Upstream
// financial sections are unreliable and never trusted.
type FinancialData struct {
	TotalProducts   float64 `json:"total_products"`
	TotalPayout     float64 `json:"total_payout"`
	TotalCommission float64 `json:"total_commission"`
	Currency        string  `json:"currency"`
}

// AnalyticsData carries fulfillment metadata; every field is independently
// optional.
type AnalyticsData struct {
	WarehouseName string `json:"warehouse_name,omitempty"`
	WarehouseID   int64  `json:"warehouse_id,omitempty"`
	Region        string `json:"region,omitempty"`
	City          string `json:"city,omitempty"`
	DeliveryType  string `json:"delivery_type,omitempty"`
	TplProvider   string `json:"tpl_provider,omitempty"`
}

// DeliveryData carries shipment routing details; every field is
// independently optional.
type DeliveryData struct {
	Method         string `json:"method,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Warehouse      string `json:"warehouse,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
	Address        string `json:"address,omitempty"`
	TplProvider    string `json:"tpl_provider,omitempty"`
}

// DefaultCurrency is assumed when the upstream item carries no currency code.
const DefaultCurrency = "RUB"

// Payout split applied when the upstream detail lacks authoritative
// financial figures, which in practice is always. Business-rule placeholder:
// the 90/10 ratio has no upstream confirmation and is kept as documented
// default behavior.
const (
	payoutRatio     = 0.9
	commissionRatio = 0.1
)

// statusLabels maps the known upstream status codes to human-readable
// Russian labels. Unknown codes pass through verbatim.
var statusLabels = map[string]string{
	"awaiting_registration":  "Ожидает регистрации",
	"acceptance_in_progress": "Приемка в процессе",
	"awaiting_approve":       "Ожидает подтверждения",
	"awaiting_packaging":     "Ожидает упаковки",
	"awaiting_deliver":       "Ожидает отгрузки",
	"delivering":             "Доставляется",
	"driver_pickup":          "Водитель забрал",
	"delivered":              "Доставлено",
	"cancelled":              "Отменено",
	"arbitration":            "Арбитраж",
}

// StatusLabel returns the localized label for an upstream status code.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
