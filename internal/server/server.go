// Package server exposes the operator intent API over HTTP and the
// document feed over WebSocket. Every intent endpoint maps to one rules
// transform; the server itself holds no match logic.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/store"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

// Server wires the store, catalog, feed hub and clocks behind one router.
type Server struct {
	store   *store.Store
	library catalog.Lookup
	hub     *Hub
	clocks  *Clocks
	logger  *zap.Logger

	// baseCtx parents the clock tickers so shutdown stops them.
	baseCtx context.Context
}

// New returns a server. The hub's Run loop is the caller's to start.
func New(ctx context.Context, st *store.Store, library catalog.Lookup, mux *transport.Mux, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   st,
		library: library,
		hub:     NewHub(logger),
		clocks:  NewClocks(st, logger),
		logger:  logger,
		baseCtx: ctx,
	}
	// Every publish, local or merged from a remote path, reaches the feed.
	mux.Subscribe(func(env transport.Envelope) {
		s.hub.broadcastEnvelope(env)
	})
	return s
}

// Hub exposes the feed hub so the caller can run it.
func (s *Server) Hub() *Hub { return s.hub }

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.hub.ServeWS(s.store.Snapshot))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)
		r.Post("/patch", s.handlePatch)
		r.Post("/reset", s.handleReset)

		r.Post("/turn", s.handleSetTurn)
		r.Post("/swap-sides", s.handleSwapSides)
		r.Post("/supporters/reset", s.handleResetSupporters)
		r.Post("/zones/clear", s.handleClearZones)
		r.Post("/stadium/remove", s.handleRemoveStadium)
		r.Post("/utility", s.handleUtility)

		r.Post("/clock/timer/start", s.handleTimerStart)
		r.Post("/clock/timer/stop", s.handleTimerStop)
		r.Post("/clock/countdown/start", s.handleCountdownStart)
		r.Post("/clock/countdown/stop", s.handleCountdownStop)

		r.Get("/cards/search", s.handleCardSearch)
		r.Get("/cards/evolutions", s.handleCardEvolutions)

		r.Route("/{side}", func(r chi.Router) {
			r.Post("/active", s.handleSetActive)
			r.Post("/active/hp", s.handleActiveHP)
			r.Post("/active/ko", s.handleActiveKO)
			r.Post("/bench/{idx}", s.handleSetBench)
			r.Post("/bench/{idx}/hp", s.handleBenchHP)
			r.Post("/bench/{idx}/ko", s.handleBenchKO)
			r.Post("/swap/{idx}", s.handleSwap)
			r.Post("/evolve", s.handleEvolve)
			r.Get("/rare-candy", s.handleRareCandySlots)
			r.Post("/rare-candy", s.handleRareCandyApply)
		})
	})

	return r
}
