package controller

import (
	"net/http"

	"github.com/cinestream/watchparty/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms/{room-id}", c.getRoom)
		r.Get("/presence/online", c.getOnlineCount)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/watch-party", c.watchParty)
		r.Get("/notifications", c.notifications)
	})

	return r
}
