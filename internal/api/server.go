package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/config"
	"github.com/pitwall/lt-relay/internal/metrics"
)

// Server hosts the REST projections, the WebSocket stream, health, and
// the Prometheus scrape endpoint on one listener.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// ServerOptions carries the wiring for NewServer.
type ServerOptions struct {
	Config  *config.Config
	Store   StateSource
	Live    LiveSource
	Stream  http.Handler
	Subs    SubscriberSource
	Version string
	Log     zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	log := opts.Log.With().Str("component", "server").Logger()

	h := NewHandlers(opts.Store, opts.Log)
	health := NewHealthHandler(opts.Live, opts.Subs, opts.Version)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	r.Method(http.MethodGet, "/api/v1/health", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle("/ws", opts.Stream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/drivers", h.Drivers)
		r.Get("/laps", h.Laps)
		r.Get("/pit", h.PitStops)
		r.Get("/intervals", h.Intervals)
		r.Get("/position", h.Locations)
		r.Get("/location", h.Locations)
		r.Get("/car_data", h.CarData)
		r.Get("/meetings", h.Meetings)
		r.Get("/sessions", h.Sessions)
		r.Get("/stints", h.Stints)
		r.Get("/team_radio", h.TeamRadio)
		r.Get("/weather", h.Weather)
		r.Get("/race_control", h.RaceControl)
		r.Get("/leaderboard", h.Leaderboard)
	})

	return &Server{
		srv: &http.Server{
			Addr:              opts.Config.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: opts.Config.ReadHeaderTimeout,
			IdleTimeout:       opts.Config.IdleTimeout,
			// WriteTimeout stays zero: /ws holds long-lived streams.
		},
		log: log,
	}
}

// Start blocks serving requests until the listener closes. It returns
// nil after a clean Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.srv.Shutdown(ctx)
}
