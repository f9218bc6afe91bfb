package server

import (
	"testing"

	"github.com/sellerstream/ozon-fbo-client/pkg/normalize"
	"github.com/sellerstream/ozon-fbo-client/pkg/runlog"
)

func testPosting(number string, totals ...float64) *normalize.Posting {
	p := &normalize.Posting{PostingNumber: number}
	for i, total := range totals {
		p.Products = append(p.Products, normalize.ProductItem{
			LineNumber: i + 1,
			Quantity:   1,
			Price:      total,
			Total:      total,
		})
		p.Financial.TotalProducts += total
	}
	p.Financial.TotalPayout = p.Financial.TotalProducts * 0.9
	p.Financial.TotalCommission = p.Financial.TotalProducts * 0.1
	return p
}

func TestCalculateStatistics(t *testing.T) {
	postings := []*normalize.Posting{
		testPosting("A", 100, 200),
		testPosting("B", 700),
	}

	stats := CalculateStatistics(postings)

	if stats.TotalPostings != 2 {
		t.Errorf("TotalPostings = %d, want 2", stats.TotalPostings)
	}
	if stats.TotalLineItems != 3 {
		t.Errorf("TotalLineItems = %d, want 3", stats.TotalLineItems)
	}
	if stats.ProductsSum != 1000 {
		t.Errorf("ProductsSum = %v, want 1000", stats.ProductsSum)
	}
	if stats.PayoutSum != 900 {
		t.Errorf("PayoutSum = %v, want 900", stats.PayoutSum)
	}
	if stats.CommissionSum != 100 {
		t.Errorf("CommissionSum = %v, want 100", stats.CommissionSum)
	}
	if stats.AvgCommissionPercent != 10 {
		t.Errorf("AvgCommissionPercent = %v, want 10", stats.AvgCommissionPercent)
	}
}

func TestCalculateStatisticsEmpty(t *testing.T) {
	stats := CalculateStatistics(nil)
	if stats.TotalPostings != 0 || stats.AvgCommissionPercent != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}

func TestSuccessEnvelopeShape(t *testing.T) {
	runLog := runlog.New()
	runLog.AddWarning("EMPTY_BATCH", "nothing normalized", nil)

	env := SuccessEnvelope(nil, map[string]any{"request_id": "abc"}, runLog)

	if !env.Success || env.Message != "Success" {
		t.Errorf("envelope header = %v / %q", env.Success, env.Message)
	}
	if env.Data == nil || env.Data.Postings == nil {
		t.Fatal("Data.Postings must be an empty array, not null")
	}
	if env.Errors == nil {
		t.Error("Errors must be an empty array, not null")
	}
	if len(env.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(env.Warnings))
	}
}

func TestErrorEnvelopeIncludesRunLog(t *testing.T) {
	runLog := runlog.New()
	runLog.AddError(runlog.KindRateLimit, "detail fetch failed", nil)

	env := ErrorEnvelope("list postings at offset 0: retry attempts exhausted", nil, runLog)

	if env.Success {
		t.Error("Success = true, want false")
	}
	if len(env.Errors) != 2 {
		t.Fatalf("len(Errors) = %d, want 2 (failure + run log)", len(env.Errors))
	}
	if env.Errors[0].Kind != "RUN_FAILURE" {
		t.Errorf("first error kind = %q, want RUN_FAILURE", env.Errors[0].Kind)
	}
	if env.Errors[1].Kind != runlog.KindRateLimit {
		t.Errorf("second error kind = %q, want %q", env.Errors[1].Kind, runlog.KindRateLimit)
	}
	if env.Warnings == nil {
		t.Error("Warnings must be an empty array, not null")
	}
}

func TestErrorEnvelopeWithoutRunLog(t *testing.T) {
	env := ErrorEnvelope("boom", nil, nil)
	if len(env.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(env.Errors))
	}
	if env.Warnings == nil {
		t.Error("Warnings must be an empty array, not null")
	}
}
