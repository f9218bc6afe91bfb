package normalize

import (
	"encoding/json"
)

// PageShape identifies which of the accepted list-response layouts a page
// matched. The set is closed: anything else is PageShapeUnrecognized.
type PageShape string

const (
	// PageShapeError is a 200 response carrying an error key. Treated as an
	// empty page, not a failure.
	PageShapeError PageShape = "error"

	// PageShapeResultPostings is the standard v2 layout: result.postings.
	PageShapeResultPostings PageShape = "result_postings"

	// PageShapeResultArray is the layout where result is a bare array.
	PageShapeResultArray PageShape = "result_array"

	// PageShapeTopLevelPostings is the layout with a top-level postings key.
	PageShapeTopLevelPostings PageShape = "top_level_postings"

	// PageShapeUnrecognized is the explicit fallback: zero results, logged
	// by the caller, never fatal.
	PageShapeUnrecognized PageShape = "unrecognized"
)

// ListPage is one decoded list response: the raw record stubs it carried and
// the shape it matched. It is transient, drained into detail-fetch tasks.
type ListPage struct {
	Shape    PageShape
	Postings []json.RawMessage
	Count    int
}

// Empty reports whether the page yielded no raw records.
func (p ListPage) Empty() bool {
	return len(p.Postings) == 0
}

type rawPostingsEnvelope struct {
	Postings []json.RawMessage `json:"postings"`
	Count    int               `json:"count"`
}

// DecodeListPage matches a list-response body against the accepted shapes in
// priority order: error key, result.postings, result as bare array,
// top-level postings. Unmatched bodies decode to an empty unrecognized page.
func DecodeListPage(body json.RawMessage) ListPage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return ListPage{Shape: PageShapeUnrecognized}
	}

	if _, ok := top["error"]; ok {
		return ListPage{Shape: PageShapeError}
	}

	if result, ok := top["result"]; ok {
		var env rawPostingsEnvelope
		if err := json.Unmarshal(result, &env); err == nil && env.Postings != nil {
			return ListPage{
				Shape:    PageShapeResultPostings,
				Postings: env.Postings,
				Count:    countOr(env.Count, len(env.Postings)),
			}
		}

		var list []json.RawMessage
		if err := json.Unmarshal(result, &list); err == nil {
			return ListPage{
				Shape:    PageShapeResultArray,
				Postings: list,
				Count:    len(list),
			}
		}
	}

	if postings, ok := top["postings"]; ok {
		var list []json.RawMessage
		if err := json.Unmarshal(postings, &list); err == nil {
			count := len(list)
			if rawCount, ok := top["count"]; ok {
				var c int
				if err := json.Unmarshal(rawCount, &c); err == nil {
					count = countOr(c, len(list))
				}
			}
			return ListPage{
				Shape:    PageShapeTopLevelPostings,
				Postings: list,
				Count:    count,
			}
		}
	}

	return ListPage{Shape: PageShapeUnrecognized}
}

func countOr(count, fallback int) int {
	if count > 0 {
		return count
	}
	return fallback
}

// DetailShape identifies the accepted detail-envelope layouts.
type DetailShape string

const (
	// DetailShapeWrapped is a detail record nested one level under result.
	DetailShapeWrapped DetailShape = "wrapped"

	// DetailShapeBare is a detail record at the top level.
	DetailShapeBare DetailShape = "bare"

	// DetailShapeInvalid is anything that is not a JSON object.
	DetailShapeInvalid DetailShape = "invalid"
)

// decodeDetail unwraps at most one result envelope level and returns the
// record fields. Non-object bodies decode as invalid.
func decodeDetail(raw json.RawMessage) (map[string]any, DetailShape) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, DetailShapeInvalid
	}

	if inner, ok := fields["result"]; ok {
		if innerFields, ok := inner.(map[string]any); ok {
			return innerFields, DetailShapeWrapped
		}
	}

	return fields, DetailShapeBare
}
