// Package testutil provides a configurable in-process mock of the Ozon
// Seller API for tests and for the gateway's mock mode.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Seller API paths mirrored by the mock.
const (
	ListPath   = "/v2/posting/fbo/list"
	DetailPath = "/v2/posting/fbo/get"
)

// MockResponse defines the behavior for one mocked endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSeller is a configurable mock Seller API server.
type MockSeller struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	listCalls    int
	detailCalls  int
	lastHeader   http.Header

	details map[string]string
}

// NewMockSeller creates a new mock Seller API server.
func NewMockSeller() *MockSeller {
	mock := &MockSeller{
		handlers: make(map[string]http.HandlerFunc),
		details:  make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastHeader = r.Header.Clone()
		switch r.URL.Path {
		case ListPath:
			mock.listCalls++
		case DetailPath:
			mock.detailCalls++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSeller) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSeller) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSeller) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSeller) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence configures a path to serve the given responses in order; the
// last response repeats once the sequence is exhausted.
func (m *MockSeller) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	index := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[index]
		if index < len(responses)-1 {
			index++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// SetPostings installs list and detail handlers serving a fixture data set
// of total postings numbered FBO-1..FBO-<total>, paged by the limit/offset
// the client sends. Every detail record is delivered with one line item
// unless overridden via SetDetail.
func (m *MockSeller) SetPostings(total int) {
	m.SetHandler(ListPath, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Limit <= 0 {
			writeResponse(w, MockResponse{StatusCode: http.StatusBadRequest, Body: `{"message":"bad list request"}`})
			return
		}

		n := total - req.Offset
		if n < 0 {
			n = 0
		}
		if n > req.Limit {
			n = req.Limit
		}

		stubs := make([]json.RawMessage, 0, n)
		for i := 0; i < n; i++ {
			stub := fmt.Sprintf(`{"posting_number":"FBO-%d","status":"delivered"}`, req.Offset+i+1)
			stubs = append(stubs, json.RawMessage(stub))
		}

		body, _ := json.Marshal(map[string]any{
			"result": map[string]any{
				"postings": stubs,
				"count":    total,
			},
		})
		writeResponse(w, MockResponse{StatusCode: http.StatusOK, Body: string(body)})
	})

	m.SetHandler(DetailPath, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PostingNumber string `json:"posting_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostingNumber == "" {
			writeResponse(w, MockResponse{StatusCode: http.StatusBadRequest, Body: `{"message":"bad detail request"}`})
			return
		}

		m.mu.RLock()
		override, ok := m.details[req.PostingNumber]
		m.mu.RUnlock()
		if ok {
			writeResponse(w, MockResponse{StatusCode: http.StatusOK, Body: override})
			return
		}

		writeResponse(w, MockResponse{
			StatusCode: http.StatusOK,
			Body:       DetailResponse(req.PostingNumber, "delivered"),
		})
	})
}

// SetDetail overrides the detail response body for one posting number.
func (m *MockSeller) SetDetail(postingNumber, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[postingNumber] = body
}

// RequestCount returns the total number of requests served.
func (m *MockSeller) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ListCalls returns the number of list calls served.
func (m *MockSeller) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls
}

// DetailCalls returns the number of detail calls served.
func (m *MockSeller) DetailCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.detailCalls
}

// LastHeader returns the headers of the most recent request.
func (m *MockSeller) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// DetailResponse builds a wrapped detail body with a single line item.
func DetailResponse(postingNumber, status string) string {
	return fmt.Sprintf(`{
		"result": {
			"posting_number": %q,
			"status": %q,
			"created_at": "2024-03-01T10:00:00Z",
			"products": [
				{"sku": 1, "name": "Widget", "quantity": 1, "price": "100"}
			],
			"analytics_data": {"warehouse_name": "Тверь", "region": "Тверская область", "city": "Тверь"}
		}
	}`, postingNumber, status)
}

// ListResponse builds a standard result.postings list body from raw stubs.
func ListResponse(count int, stubs ...string) string {
	joined := ""
	for i, stub := range stubs {
		if i > 0 {
			joined += ","
		}
		joined += stub
	}
	return fmt.Sprintf(`{"result":{"postings":[%s],"count":%d}}`, joined, count)
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
