package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sellerstream/ozon-fbo-client/pkg/cache"
	"github.com/sellerstream/ozon-fbo-client/pkg/normalize"
	"github.com/sellerstream/ozon-fbo-client/pkg/ratelimit"
	"github.com/sellerstream/ozon-fbo-client/pkg/runlog"
	"github.com/sellerstream/ozon-fbo-client/pkg/transport"
)

// Prometheus metrics for pipeline runs.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_pages_total",
		Help: "Total list pages fetched by decoded shape",
	}, []string{"shape"})

	postingsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ozon_fbo_postings_emitted_total",
		Help: "Total normalized postings emitted to consumers",
	})

	postingsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_postings_dropped_total",
		Help: "Total postings dropped during a run by reason",
	}, []string{"reason"})
)

// Upstream endpoints and request layout.
const (
	listEndpoint   = "/v2/posting/fbo/list"
	detailEndpoint = "/v2/posting/fbo/get"

	// upstreamTimeLayout is the exact timestamp format the Seller API
	// expects in list filters, always UTC.
	upstreamTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Config holds pipeline tuning. The chunk width and delay bound peak
// concurrent upstream connections as backpressure against rate limiting,
// not as a performance knob; defaults must stay at width 10 / 0.5s.
type Config struct {
	// PageLimit is the number of record stubs requested per list call.
	PageLimit int

	// ChunkWidth is the number of concurrent detail fetches per chunk.
	ChunkWidth int

	// ChunkDelay is the cooling-off pause between detail chunks.
	ChunkDelay time.Duration
}

// DefaultConfig returns the production pipeline configuration.
func DefaultConfig() Config {
	return Config{
		PageLimit:  1000,
		ChunkWidth: 10,
		ChunkDelay: 500 * time.Millisecond,
	}
}

// Pipeline orchestrates one period's retrieval. Construct one per run; it
// does not share mutable state across runs.
type Pipeline struct {
	transport *transport.Transport
	cache     *cache.Manager // nil when caching is disabled
	pacer     *ratelimit.Pacer
	config    Config
	logger    zerolog.Logger
}

// New creates a pipeline over the given transport. The detail cache is
// optional and may be nil.
func New(t *transport.Transport, detailCache *cache.Manager, pacer *ratelimit.Pacer, cfg Config) *Pipeline {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 1000
	}
	if cfg.ChunkWidth <= 0 {
		cfg.ChunkWidth = 10
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 500 * time.Millisecond
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(ratelimit.DefaultInterval)
	}

	return &Pipeline{
		transport: t,
		cache:     detailCache,
		pacer:     pacer,
		config:    cfg,
		logger:    log.With().Str("component", "pipeline").Logger(),
	}
}

// Stream starts a run over [from, to]. The returned stream is lazy, finite
// and non-restartable; iterate with Next/Batch and check Err afterwards:
//
//	st := p.Stream(from, to)
//	for st.Next(ctx) {
//	    consume(st.Batch())
//	}
//	if err := st.Err(); err != nil { ... }
func (p *Pipeline) Stream(from, to time.Time) *Stream {
	return &Stream{
		pipeline: p,
		from:     from,
		to:       to,
		runLog:   runlog.New(),
	}
}

// Stream is the pull-driven sequence of normalized posting batches for one
// run. It owns the run state: page offset, batch and item counters, and the
// run log. Not safe for concurrent consumption.
type Stream struct {
	pipeline *Pipeline
	from, to time.Time

	runLog     *runlog.Log
	offset     int
	batchCount int
	totalItems int

	batch []*normalize.Posting
	err   error
	done  bool
}

// Next advances to the following non-empty batch. It returns false when the
// stream is exhausted or failed; Err distinguishes the two.
func (s *Stream) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		page, err := s.listPage(ctx)
		if err != nil {
			s.fail(err)
			return false
		}

		pagesTotal.WithLabelValues(string(page.Shape)).Inc()

		if page.Shape == normalize.PageShapeUnrecognized {
			s.pipeline.logger.Warn().
				Int("offset", s.offset).
				Msg("Unrecognized list response shape, treating as empty page")
			s.runLog.AddWarning("UNEXPECTED_RESPONSE_SHAPE",
				"list response did not match any known layout",
				map[string]any{"offset": s.offset})
		}

		if page.Empty() {
			s.finish()
			return false
		}

		s.pipeline.logger.Info().
			Int("page", s.offset/s.pipeline.config.PageLimit+1).
			Int("postings", len(page.Postings)).
			Int("count", page.Count).
			Msg("List page fetched")

		lastPage := len(page.Postings) < s.pipeline.config.PageLimit
		s.offset += s.pipeline.config.PageLimit

		batch := s.processPage(ctx, page.Postings)
		if lastPage {
			s.done = true
		}

		if len(batch) > 0 {
			s.batchCount++
			s.totalItems += len(batch)
			postingsEmittedTotal.Add(float64(len(batch)))
			s.batch = batch
			if s.done {
				s.logTotals()
			}
			return true
		}

		// Non-empty raw input produced nothing; keep paging.
		s.pipeline.logger.Warn().
			Int("raw_postings", len(page.Postings)).
			Msg("No postings normalized from raw page")
		s.runLog.AddWarning("EMPTY_BATCH",
			"no postings normalized from non-empty page",
			map[string]any{"raw_postings": len(page.Postings)})

		if s.done {
			s.finish()
			return false
		}
	}
}

// Batch returns the batch produced by the last successful Next call.
func (s *Stream) Batch() []*normalize.Posting {
	return s.batch
}

// Err returns the run failure, if any. A nil error after Next returns false
// means natural completion.
func (s *Stream) Err() error {
	return s.err
}

// Log returns the run's error accumulator.
func (s *Stream) Log() *runlog.Log {
	return s.runLog
}

// BatchCount returns the number of batches emitted so far.
func (s *Stream) BatchCount() int {
	return s.batchCount
}

// TotalItems returns the number of postings emitted so far.
func (s *Stream) TotalItems() int {
	return s.totalItems
}

func (s *Stream) finish() {
	s.done = true
	s.logTotals()
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	s.pipeline.logger.Error().Err(err).Msg("Run failed")
	s.logTotals()
}

func (s *Stream) logTotals() {
	s.pipeline.logger.Info().
		Int("total_postings", s.totalItems).
		Int("batches", s.batchCount).
		Msg("Run totals")
}

type listRequest struct {
	Dir      string      `json:"dir"`
	Filter   listFilter  `json:"filter"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
	Translit bool        `json:"translit"`
	With     withOptions `json:"with"`
}

type listFilter struct {
	Since string `json:"since"`
	To    string `json:"to"`
}

type withOptions struct {
	AnalyticsData bool `json:"analytics_data"`
	FinancialData bool `json:"financial_data"`
	Barcodes      bool `json:"barcodes"`
}

type detailRequest struct {
	PostingNumber string      `json:"posting_number"`
	With          withOptions `json:"with"`
}

// listPage fetches and decodes one page of record stubs.
func (s *Stream) listPage(ctx context.Context) (normalize.ListPage, error) {
	if err := s.pipeline.pacer.Wait(ctx); err != nil {
		return normalize.ListPage{}, fmt.Errorf("pacing wait: %w", err)
	}

	body := listRequest{
		Dir: "ASC",
		Filter: listFilter{
			Since: s.from.UTC().Format(upstreamTimeLayout),
			To:    s.to.UTC().Format(upstreamTimeLayout),
		},
		Limit:    s.pipeline.config.PageLimit,
		Offset:   s.offset,
		Translit: true,
		With: withOptions{
			AnalyticsData: true,
			FinancialData: true,
			Barcodes:      true,
		},
	}

	raw, err := s.pipeline.transport.Request(ctx, "POST", listEndpoint, body)
	if err != nil {
		return normalize.ListPage{}, fmt.Errorf("list postings at offset %d: %w", s.offset, err)
	}

	return normalize.DecodeListPage(raw), nil
}

// processPage fetches details for one page's stubs and normalizes them.
// Failed fetches and filtered records are excluded, never fatal.
func (s *Stream) processPage(ctx context.Context, stubs []json.RawMessage) []*normalize.Posting {
	numbers := make([]string, 0, len(stubs))
	for _, stub := range stubs {
		var head struct {
			PostingNumber string `json:"posting_number"`
		}
		if err := json.Unmarshal(stub, &head); err != nil || head.PostingNumber == "" {
			postingsDroppedTotal.WithLabelValues("no_identity").Inc()
			continue
		}
		numbers = append(numbers, head.PostingNumber)
	}

	batch := make([]*normalize.Posting, 0, len(numbers))
	width := s.pipeline.config.ChunkWidth

	for start := 0; start < len(numbers); start += width {
		end := start + width
		if end > len(numbers) {
			end = len(numbers)
		}
		chunk := numbers[start:end]

		// All fetches in a chunk run to completion before the batch can
		// move on; cancellation takes effect between chunks.
		details := make([]json.RawMessage, len(chunk))
		var wg sync.WaitGroup
		for i, number := range chunk {
			wg.Add(1)
			go func(i int, number string) {
				defer wg.Done()
				details[i] = s.fetchDetail(ctx, number)
			}(i, number)
		}
		wg.Wait()

		for _, detail := range details {
			if detail == nil {
				continue
			}
			if posting := normalize.Normalize(detail); posting != nil {
				batch = append(batch, posting)
			} else {
				postingsDroppedTotal.WithLabelValues("filtered").Inc()
			}
		}

		if end < len(numbers) {
			select {
			case <-ctx.Done():
				return batch
			case <-time.After(s.pipeline.config.ChunkDelay):
			}
		}
	}

	return batch
}

// fetchDetail retrieves one posting's full record, consulting the detail
// cache first. Returns nil on failure after recording it; a bad record never
// aborts the page.
func (s *Stream) fetchDetail(ctx context.Context, postingNumber string) json.RawMessage {
	if s.pipeline.cache != nil {
		cached, err := s.pipeline.cache.GetDetail(ctx, postingNumber)
		if err == nil {
			return cached
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.pipeline.logger.Warn().Err(err).
				Str("posting_number", postingNumber).
				Msg("Detail cache read failed, falling back to upstream")
		}
	}

	if err := s.pipeline.pacer.Wait(ctx); err != nil {
		s.recordDetailFailure(postingNumber, err)
		return nil
	}

	body := detailRequest{
		PostingNumber: postingNumber,
		With: withOptions{
			AnalyticsData: true,
			FinancialData: true,
			Barcodes:      true,
		},
	}

	raw, err := s.pipeline.transport.Request(ctx, "POST", detailEndpoint, body)
	if err != nil {
		s.recordDetailFailure(postingNumber, err)
		return nil
	}

	if s.pipeline.cache != nil {
		if err := s.pipeline.cache.SetDetail(ctx, postingNumber, raw); err != nil {
			s.pipeline.logger.Warn().Err(err).
				Str("posting_number", postingNumber).
				Msg("Detail cache write failed")
		}
	}

	return raw
}

func (s *Stream) recordDetailFailure(postingNumber string, err error) {
	postingsDroppedTotal.WithLabelValues("fetch_failed").Inc()
	s.runLog.AddError(errorKind(err),
		fmt.Sprintf("detail fetch failed for %s", postingNumber),
		map[string]any{"posting_number": postingNumber, "error": err.Error()})
	s.pipeline.logger.Warn().Err(err).
		Str("posting_number", postingNumber).
		Msg("Detail fetch failed, excluding posting")
}

// errorKind maps a transport failure to a run log kind.
func errorKind(err error) string {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorClass {
		case transport.ErrorClassRateLimit:
			return runlog.KindRateLimit
		case transport.ErrorClassServer:
			return runlog.KindServer5xx
		case transport.ErrorClassNetwork:
			return runlog.KindNetwork
		default:
			return "API_CLIENT_ERROR"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return runlog.KindTimeout
	}
	return runlog.KindNetwork
}
