// Package server implements the HTTP gateway in front of the posting
// pipeline: request validation at the boundary, one pipeline run per
// request, and the 1C response envelope.
package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sellerstream/ozon-fbo-client/internal/config"
	"github.com/sellerstream/ozon-fbo-client/pkg/cache"
	"github.com/sellerstream/ozon-fbo-client/pkg/logging"
	"github.com/sellerstream/ozon-fbo-client/pkg/metrics"
	"github.com/sellerstream/ozon-fbo-client/pkg/pipeline"
	"github.com/sellerstream/ozon-fbo-client/pkg/ratelimit"
	"github.com/sellerstream/ozon-fbo-client/pkg/transport"
)

const (
	serviceName    = "ozon-fbo-client"
	serviceVersion = "1.0.0"
)

// Server wires configuration, the optional detail cache and the pipeline
// factory behind the HTTP handlers. Each request owns its transport and
// run state; only the cache manager is shared.
type Server struct {
	ozon          config.Ozon
	maxPeriodDays int
	detailCache   *cache.Manager // nil when Redis caching is disabled
	logger        zerolog.Logger
}

// New creates a gateway server. detailCache may be nil.
func New(cfg *config.Config, detailCache *cache.Manager) *Server {
	return &Server{
		ozon:          cfg.Ozon,
		maxPeriodDays: cfg.App.MaxPeriodDays,
		detailCache:   detailCache,
		logger:        logging.NewLogger("server"),
	}
}

// Router builds the chi router with all gateway routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/fbo/postings", s.handlePostings)
	})

	return r
}

// newPipeline builds a per-request pipeline over a fresh transport holding
// the caller's credentials. The returned close func releases the transport's
// connection pool and must run on every exit path.
func (s *Server) newPipeline(clientID, apiKey string) (*pipeline.Pipeline, func() error, error) {
	t, err := transport.New(transport.Config{
		BaseURL:  s.ozon.BaseURL,
		ClientID: clientID,
		APIKey:   apiKey,
		Timeout:  s.ozon.RequestTimeout,
		Retry: transport.RetryPolicy{
			MaxAttempts: s.ozon.MaxRetries,
			BaseDelay:   s.ozon.RetryBaseDelay,
			Jitter:      0.2,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(t, s.detailCache, ratelimit.NewPacer(s.ozon.PaceInterval), pipeline.Config{
		PageLimit:  s.ozon.PageLimit,
		ChunkWidth: s.ozon.ChunkWidth,
		ChunkDelay: s.ozon.ChunkDelay,
	})

	return p, t.Close, nil
}
