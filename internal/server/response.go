package server

import (
	"math"
	"time"

	"github.com/sellerstream/ozon-fbo-client/pkg/normalize"
	"github.com/sellerstream/ozon-fbo-client/pkg/runlog"
)

// Envelope is the response contract consumed by 1C. Partial success is a
// success envelope: whatever subset of records was produced ships alongside
// the accumulated error and warning log.
type Envelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      *Data          `json:"data"`
	Metadata  map[string]any `json:"metadata"`
	Errors    []runlog.Entry `json:"errors"`
	Warnings  []runlog.Entry `json:"warnings"`
}

// Data carries the normalized postings and their aggregate statistics.
type Data struct {
	Postings   []*normalize.Posting `json:"postings"`
	Statistics Statistics           `json:"statistics"`
}

// Statistics summarizes one run for the response envelope.
type Statistics struct {
	TotalPostings        int     `json:"total_postings"`
	TotalLineItems       int     `json:"total_line_items"`
	ProductsSum          float64 `json:"products_sum"`
	PayoutSum            float64 `json:"payout_sum"`
	CommissionSum        float64 `json:"commission_sum"`
	AvgCommissionPercent float64 `json:"avg_commission_percent"`
}

// CalculateStatistics aggregates financials over the emitted postings.
func CalculateStatistics(postings []*normalize.Posting) Statistics {
	stats := Statistics{TotalPostings: len(postings)}

	for _, p := range postings {
		stats.TotalLineItems += len(p.Products)
		stats.ProductsSum += p.Financial.TotalProducts
		stats.PayoutSum += p.Financial.TotalPayout
		stats.CommissionSum += p.Financial.TotalCommission
	}

	if stats.ProductsSum > 0 {
		stats.AvgCommissionPercent = round(stats.CommissionSum/stats.ProductsSum*100, 1)
	}
	stats.ProductsSum = round(stats.ProductsSum, 2)
	stats.PayoutSum = round(stats.PayoutSum, 2)
	stats.CommissionSum = round(stats.CommissionSum, 2)

	return stats
}

// SuccessEnvelope assembles the success response for a completed run.
func SuccessEnvelope(postings []*normalize.Posting, metadata map[string]any, runLog *runlog.Log) Envelope {
	if postings == nil {
		postings = []*normalize.Posting{}
	}
	return Envelope{
		Success:   true,
		Message:   "Success",
		Timestamp: time.Now().Format(time.RFC3339),
		Data: &Data{
			Postings:   postings,
			Statistics: CalculateStatistics(postings),
		},
		Metadata: metadata,
		Errors:   entriesOrEmpty(runLog.Errors()),
		Warnings: entriesOrEmpty(runLog.Warnings()),
	}
}

// ErrorEnvelope assembles the failure response for an aborted run.
func ErrorEnvelope(message string, metadata map[string]any, runLog *runlog.Log) Envelope {
	env := Envelope{
		Success:   false,
		Message:   "Error",
		Timestamp: time.Now().Format(time.RFC3339),
		Metadata:  metadata,
		Errors:    []runlog.Entry{{Kind: "RUN_FAILURE", Message: message, Timestamp: time.Now()}},
		Warnings:  []runlog.Entry{},
	}
	if runLog != nil {
		env.Errors = append(env.Errors, runLog.Errors()...)
		env.Warnings = entriesOrEmpty(runLog.Warnings())
	}
	return env
}

func entriesOrEmpty(entries []runlog.Entry) []runlog.Entry {
	if entries == nil {
		return []runlog.Entry{}
	}
	return entries
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
