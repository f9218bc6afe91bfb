package normalize

import (
	"encoding/json"
	"testing"
)

func TestDecodeListPageShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape PageShape
		wantLen   int
		wantCount int
	}{
		{
			name:      "error key",
			body:      `{"error": {"code": "TOO_MANY_REQUESTS"}}`,
			wantShape: PageShapeError,
			wantLen:   0,
		},
		{
			name:      "result postings",
			body:      `{"result": {"postings": [{"posting_number":"A"},{"posting_number":"B"}], "count": 42}}`,
			wantShape: PageShapeResultPostings,
			wantLen:   2,
			wantCount: 42,
		},
		{
			name:      "result postings without count",
			body:      `{"result": {"postings": [{"posting_number":"A"}]}}`,
			wantShape: PageShapeResultPostings,
			wantLen:   1,
			wantCount: 1,
		},
		{
			name:      "result bare array",
			body:      `{"result": [{"posting_number":"A"},{"posting_number":"B"},{"posting_number":"C"}]}`,
			wantShape: PageShapeResultArray,
			wantLen:   3,
			wantCount: 3,
		},
		{
			name:      "top level postings",
			body:      `{"postings": [{"posting_number":"A"}], "count": 7}`,
			wantShape: PageShapeTopLevelPostings,
			wantLen:   1,
			wantCount: 7,
		},
		{
			name:      "unexpected shape",
			body:      `{"unexpected": "shape"}`,
			wantShape: PageShapeUnrecognized,
			wantLen:   0,
		},
		{
			name:      "not an object",
			body:      `[1, 2, 3]`,
			wantShape: PageShapeUnrecognized,
			wantLen:   0,
		},
		{
			name:      "error key wins over result",
			body:      `{"error": "boom", "result": {"postings": [{"posting_number":"A"}]}}`,
			wantShape: PageShapeError,
			wantLen:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := DecodeListPage(json.RawMessage(tt.body))
			if page.Shape != tt.wantShape {
				t.Errorf("Shape = %q, want %q", page.Shape, tt.wantShape)
			}
			if len(page.Postings) != tt.wantLen {
				t.Errorf("len(Postings) = %d, want %d", len(page.Postings), tt.wantLen)
			}
			if tt.wantCount != 0 && page.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", page.Count, tt.wantCount)
			}
		})
	}
}

func TestListPageEmpty(t *testing.T) {
	if !(ListPage{}).Empty() {
		t.Error("zero page should be empty")
	}
	page := ListPage{Postings: []json.RawMessage{json.RawMessage(`{}`)}}
	if page.Empty() {
		t.Error("page with postings should not be empty")
	}
}

func TestDecodeDetail(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape DetailShape
		wantKey   string
	}{
		{"wrapped", `{"result": {"posting_number": "A"}}`, DetailShapeWrapped, "posting_number"},
		{"bare", `{"posting_number": "A"}`, DetailShapeBare, "posting_number"},
		{"result not an object", `{"result": [1,2]}`, DetailShapeBare, "result"},
		{"invalid", `"just a string"`, DetailShapeInvalid, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, shape := decodeDetail(json.RawMessage(tt.body))
			if shape != tt.wantShape {
				t.Errorf("shape = %q, want %q", shape, tt.wantShape)
			}
			if tt.wantKey != "" {
				if _, ok := fields[tt.wantKey]; !ok {
					t.Errorf("fields missing key %q: %v", tt.wantKey, fields)
				}
			}
		})
	}
}
