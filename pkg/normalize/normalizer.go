package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// identityKeys are the accepted aliases for the record identifier, probed in
// order.
var identityKeys = []string{"posting_number", "postingNumber", "posting"}

// Normalize converts one raw detail record into a Posting. It returns nil
// for filtered inputs: empty records, records missing every identity key,
// and bodies that are not JSON objects. A filtered record is not an error.
//
// Normalization never propagates a failure; if building the record panics,
// the record is dropped and logged.
func Normalize(raw json.RawMessage) (posting *Posting) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Dropping posting: normalization failed")
			posting = nil
		}
	}()

	fields, shape := decodeDetail(raw)
	if shape == DetailShapeInvalid || len(fields) == 0 {
		return nil
	}

	postingNumber := ""
	for _, key := range identityKeys {
		if v, ok := fields[key]; ok {
			if s := asString(v); s != "" {
				postingNumber = s
				break
			}
		}
	}
	if postingNumber == "" {
		return nil
	}

	status := asString(fields["status"])
	products := buildProducts(fields, postingNumber)

	return &Posting{
		PostingNumber: postingNumber,
		OrderNumber:   asString(fields["order_id"]),
		Status:        status,
		StatusRU:      StatusLabel(status),
		CreatedAt:     toISOString(fields["created_at"]),
		InProcessAt:   toISOString(fields["in_process_at"]),
		Products:      products,
		Financial:     buildFinancial(products),
		Analytics:     buildAnalytics(fields),
		Delivery:      buildDelivery(fields),
		Customer:      buildCustomer(fields),
	}
}

// buildProducts extracts line items from the raw products sequence. Entries
// with non-positive quantity are skipped; line numbers are assigned densely
// from 1 regardless of upstream ordering metadata.
func buildProducts(fields map[string]any, postingNumber string) []ProductItem {
	items := []ProductItem{}

	for _, entry := range asSlice(fields["products"]) {
		product, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		quantity := asInt(product["quantity"])
		if quantity <= 0 {
			continue
		}

		price := safeFloat(product["price"])
		line := len(items) + 1

		name := asString(product["name"])
		if name == "" {
			name = fmt.Sprintf("Товар %d", line)
		}

		currency := asString(product["currency_code"])
		if currency == "" {
			currency = DefaultCurrency
		}

		items = append(items, ProductItem{
			LineNumber:    line,
			SKU:           asInt64(product["sku"]),
			Name:          name,
			Quantity:      quantity,
			Price:         price,
			Total:         price * float64(quantity),
			PostingNumber: postingNumber,
			OfferID:       asString(product["offer_id"]),
			CurrencyCode:  currency,
		})
	}

	return items
}

// buildFinancial derives the financial summary from the accepted line items
// only. The payout/commission split is the fixed placeholder ratio.
func buildFinancial(items []ProductItem) FinancialData {
	fin := FinancialData{Currency: DefaultCurrency}
	for _, item := range items {
		fin.TotalProducts += item.Total
	}
	fin.TotalPayout = fin.TotalProducts * payoutRatio
	fin.TotalCommission = fin.TotalProducts * commissionRatio
	return fin
}

func buildAnalytics(fields map[string]any) AnalyticsData {
	analytics := asMap(fields["analytics_data"])

	return AnalyticsData{
		WarehouseName: asString(analytics["warehouse_name"]),
		WarehouseID:   asInt64(analytics["warehouse_id"]),
		Region:        asString(analytics["region"]),
		City:          asString(analytics["city"]),
		DeliveryType:  asString(analytics["delivery_type"]),
		TplProvider:   asString(analytics["tpl_provider"]),
	}
}

func buildDelivery(fields map[string]any) DeliveryData {
	method := asMap(fields["delivery_method"])
	addressee := asMap(fields["addressee"])
	warehouse := asMap(fields["warehouse"])

	return DeliveryData{
		Method:         asString(method["name"]),
		TrackingNumber: asString(fields["tracking_number"]),
		Warehouse:      asString(warehouse["name"]),
		DeliveryDate:   toISOString(fields["delivery_date"]),
		Address:        asString(addressee["address"]),
		TplProvider:    asString(method["tpl_provider"]),
	}
}

// buildCustomer merges the customer and addressee sections; the first
// non-empty value wins per key.
func buildCustomer(fields map[string]any) map[string]any {
	customer := asMap(fields["customer"])
	addressee := asMap(fields["addressee"])

	return map[string]any{
		"name":             firstNonEmpty(asString(customer["name"]), asString(addressee["name"])),
		"phone":            firstNonEmpty(asString(customer["phone"]), asString(addressee["phone"])),
		"email":            asString(customer["email"]),
		"address":          asString(customer["address"]),
		"delivery_address": asString(addressee["address"]),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// isoLayouts are the timestamp layouts accepted from the upstream.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// toISOString validates an upstream timestamp value. Parseable strings pass
// through unchanged; missing or non-parseable values become absent.
func toISOString(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s
		}
	}
	return ""
}

// safeFloat coerces an upstream numeric value with locale tolerance: comma
// decimal separators and embedded spaces are accepted, garbage coerces to 0.
func safeFloat(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(value))
		if cleaned == "" {
			return 0
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

func asInt(v any) int {
	return int(safeFloat(v))
}

func asInt64(v any) int64 {
	return int64(safeFloat(v))
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}
