package normalize

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestNormalizeFullRecord(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "12345-0001-1",
		"order_id": 98765,
		"status": "delivered",
		"created_at": "2024-03-01T10:00:00Z",
		"products": [
			{"sku": 111, "name": "Чайник", "quantity": 2, "price": "1500.50", "offer_id": "OFR-1"},
			{"sku": 222, "name": "Кружка", "quantity": 1, "price": 300}
		],
		"analytics_data": {"warehouse_name": "Тверь", "region": "Тверская область", "city": "Тверь"},
		"addressee": {"name": "Иванов И.И.", "address": "ул. Ленина, 1"}
	}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}

	if p.PostingNumber != "12345-0001-1" {
		t.Errorf("PostingNumber = %q", p.PostingNumber)
	}
	if p.OrderNumber != "98765" {
		t.Errorf("OrderNumber = %q, want 98765", p.OrderNumber)
	}
	if p.Status != "delivered" || p.StatusRU != "Доставлено" {
		t.Errorf("Status = %q / %q, want delivered / Доставлено", p.Status, p.StatusRU)
	}
	if p.CreatedAt != "2024-03-01T10:00:00Z" {
		t.Errorf("CreatedAt = %q", p.CreatedAt)
	}

	if len(p.Products) != 2 {
		t.Fatalf("len(Products) = %d, want 2", len(p.Products))
	}
	first := p.Products[0]
	if first.LineNumber != 1 || first.SKU != 111 || first.Quantity != 2 {
		t.Errorf("first item = %+v", first)
	}
	if first.Price != 1500.50 || first.Total != 3001.00 {
		t.Errorf("first item price/total = %v/%v", first.Price, first.Total)
	}
	if first.CurrencyCode != DefaultCurrency {
		t.Errorf("CurrencyCode = %q, want %q", first.CurrencyCode, DefaultCurrency)
	}

	if p.Analytics.WarehouseName != "Тверь" {
		t.Errorf("Analytics.WarehouseName = %q", p.Analytics.WarehouseName)
	}
	if p.Customer["name"] != "Иванов И.И." {
		t.Errorf("Customer name = %v", p.Customer["name"])
	}
}

func TestNormalizeUnwrapsResultEnvelope(t *testing.T) {
	wrapped := json.RawMessage(`{"result": {"posting_number": "FBO-1", "status": "delivering"}}`)

	p := Normalize(wrapped)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}
	if p.PostingNumber != "FBO-1" {
		t.Errorf("PostingNumber = %q, want FBO-1", p.PostingNumber)
	}
	if p.StatusRU != "Доставляется" {
		t.Errorf("StatusRU = %q, want Доставляется", p.StatusRU)
	}
}

func TestNormalizeFiltersRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing identity", `{"status": "delivered", "products": []}`},
		{"empty identity", `{"posting_number": "", "status": "delivered"}`},
		{"empty object", `{}`},
		{"not an object", `[1, 2, 3]`},
		{"not json", `garbage`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p := Normalize(json.RawMessage(tt.raw)); p != nil {
				t.Errorf("Normalize(%s) = %+v, want nil", tt.raw, p)
			}
		})
	}
}

func TestNormalizeIdentityAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"snake case", `{"posting_number": "A-1"}`, "A-1"},
		{"camel case", `{"postingNumber": "B-2"}`, "B-2"},
		{"short alias", `{"posting": "C-3"}`, "C-3"},
		{"first alias wins", `{"posting_number": "A-1", "posting": "C-3"}`, "A-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(json.RawMessage(tt.raw))
			if p == nil {
				t.Fatal("Normalize() = nil, want posting")
			}
			if p.PostingNumber != tt.want {
				t.Errorf("PostingNumber = %q, want %q", p.PostingNumber, tt.want)
			}
		})
	}
}

func TestNormalizeSkipsNonPositiveQuantities(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "FBO-9",
		"products": [
			{"sku": 1, "name": "A", "quantity": 0, "price": "10"},
			{"sku": 2, "name": "B", "quantity": 3, "price": "10"},
			{"sku": 3, "name": "C", "quantity": -1, "price": "10"},
			{"sku": 4, "name": "D", "quantity": 1, "price": "10"}
		]
	}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}
	if len(p.Products) != 2 {
		t.Fatalf("len(Products) = %d, want 2", len(p.Products))
	}

	// Line numbers stay dense over the accepted items.
	if p.Products[0].LineNumber != 1 || p.Products[0].SKU != 2 {
		t.Errorf("first accepted item = %+v", p.Products[0])
	}
	if p.Products[1].LineNumber != 2 || p.Products[1].SKU != 4 {
		t.Errorf("second accepted item = %+v", p.Products[1])
	}
}

func TestNormalizeDefaultProductName(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "FBO-10",
		"products": [{"sku": 5, "quantity": 1, "price": "1"}]
	}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}
	if got := p.Products[0].Name; got != "Товар 1" {
		t.Errorf("Name = %q, want Товар 1", got)
	}
}

func TestNormalizeFinancialInvariant(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "FBO-11",
		"products": [
			{"sku": 1, "name": "A", "quantity": 2, "price": "100"},
			{"sku": 2, "name": "B", "quantity": 1, "price": "50,50"}
		]
	}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}

	var sum float64
	for _, item := range p.Products {
		sum += item.Total
	}
	if math.Abs(p.Financial.TotalProducts-sum) > 1e-9 {
		t.Errorf("TotalProducts = %v, want item sum %v", p.Financial.TotalProducts, sum)
	}
	if math.Abs(p.Financial.TotalPayout-sum*0.9) > 1e-9 {
		t.Errorf("TotalPayout = %v, want %v", p.Financial.TotalPayout, sum*0.9)
	}
	if math.Abs(p.Financial.TotalCommission-sum*0.1) > 1e-9 {
		t.Errorf("TotalCommission = %v, want %v", p.Financial.TotalCommission, sum*0.1)
	}
	if p.Financial.Currency != DefaultCurrency {
		t.Errorf("Currency = %q, want %q", p.Financial.Currency, DefaultCurrency)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "FBO-12",
		"status": "cancelled",
		"products": [{"sku": 1, "name": "A", "quantity": 1, "price": "99.99"}]
	}`)

	first := Normalize(raw)
	second := Normalize(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize() not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestNormalizeDropsUnparseableTimestamps(t *testing.T) {
	raw := json.RawMessage(`{
		"posting_number": "FBO-13",
		"created_at": "not a date",
		"in_process_at": "2024-03-01"
	}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want posting")
	}
	if p.CreatedAt != "" {
		t.Errorf("CreatedAt = %q, want empty", p.CreatedAt)
	}
	if p.InProcessAt != "2024-03-01" {
		t.Errorf("InProcessAt = %q, want pass-through", p.InProcessAt)
	}
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 12.5, 12.5},
		{"plain string", "100.50", 100.50},
		{"comma decimal", "100,50", 100.50},
		{"embedded spaces", "1 200,75", 1200.75},
		{"nbsp thousands", "1 500", 1500},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safeFloat(tt.in); got != tt.want {
				t.Errorf("safeFloat(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"delivered", "Доставлено"},
		{"cancelled", "Отменено"},
		{"awaiting_packaging", "Ожидает упаковки"},
		{"driver_pickup", "Водитель забрал"},
		{"some_new_status", "some_new_status"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StatusLabel(tt.status); got != tt.want {
			t.Errorf("StatusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
