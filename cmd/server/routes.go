package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	authmw "github.com/itsDrac/e-auc-bidding/internal/middleware"
	"github.com/itsDrac/e-auc-bidding/internal/realtime"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
)

func (s *Server) routes() *chi.Mux {
	mux := chi.NewMux()
	deps := s.Dependencies

	// global middlewares
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", s.healthCheck)

	// websocket viewers authenticate with ?token=
	mux.With(authmw.AuthMiddleware(deps.Jwt)).Get("/ws", deps.WSHandler.ServeHTTP)

	mux.Route("/api/v1", func(r chi.Router) {
		r.Use(s.LoggerMiddleware())
		r.Get("/health", s.healthCheck)

		r.Group(func(pr chi.Router) {
			pr.Use(authmw.AuthMiddleware(deps.Jwt))

			pr.Route("/lots/{lotId}", func(lr chi.Router) {
				lr.Get("/", deps.LotHandler.GetLot)
				lr.Get("/bids", deps.BidHandler.ListBids)
				lr.Post("/bids", deps.BidHandler.PlaceBid)
				lr.Put("/proxy-bid", deps.BidHandler.RegisterProxyBid)
				lr.Get("/ledger", deps.LotHandler.GetLedger)
			})

			pr.Group(func(ar chi.Router) {
				ar.Use(authmw.RequireRole(config.RoleAdmin, config.RoleOps))
				ar.Post("/auctions/{auctionId}/open", deps.LotHandler.OpenAuction)
				ar.Post("/ops/concurrency-probe", deps.OpsHandler.ConcurrencyProbe)
			})
		})
	})

	return mux
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"message": "ok",
		"time":    time.Now().Format(time.RFC3339),
	}
	if s.Dependencies != nil && s.Dependencies.Bus != nil {
		resp["events"] = s.Dependencies.Bus.Stats()
		resp["viewers"] = s.Dependencies.Hub.Stats()
	}
	if s.Dependencies != nil {
		if dc, ok := s.Dependencies.Backbone.(realtime.DropCounter); ok {
			resp["backbone_dropped"] = dc.Dropped()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	json.NewEncoder(w).Encode(resp)
}
