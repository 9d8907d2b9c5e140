package rest

import (
	"context"
	"net/http"
	"time"

	core_port "property-catalog/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	AdminKey       string
}

type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewRouter wires every route of the service.
func NewRouter(
	cfg ServerConfig,
	listings *ListingsHandler,
	favorites *FavoritesHandler,
	admin *AdminHandler,
	baseLogger core_port.LoggerPort,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", deviceIDHeader, adminKeyHeader, traceIDHeader},
		ExposedHeaders:   []string{traceIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/nav", Navigation)

		r.Post("/listings/sell", listings.SubmitSell)
		r.Get("/listings/{category}", listings.Browse)

		r.Route("/favorites", func(r chi.Router) {
			r.Use(SessionMiddleware)
			r.Get("/", favorites.List)
			r.Delete("/", favorites.Clear)
			r.Post("/sync", favorites.Sync)
			r.Post("/toggle", favorites.Toggle)
			r.Delete("/{listingID}", favorites.Remove)
		})

		r.Route("/admin/{category}", func(r chi.Router) {
			r.Use(AdminKeyMiddleware(cfg.AdminKey))
			r.Get("/listings", admin.List)
			r.Post("/listings", admin.Create)
			r.Get("/listings/{id}", admin.Get)
			r.Put("/listings/{id}", admin.Update)
			r.Post("/listings/{id}/delete-request", admin.RequestDelete)
			r.Post("/delete-requests/{token}/confirm", admin.ConfirmDelete)
			r.Delete("/delete-requests/{token}", admin.CancelDelete)
		})
	})

	return r
}

func NewServer(
	cfg ServerConfig,
	listings *ListingsHandler,
	favorites *FavoritesHandler,
	admin *AdminHandler,
	baseLogger core_port.LoggerPort,
) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, listings, favorites, admin, baseLogger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST server", core_port.Fields{"address": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST server...", nil)
	return s.httpServer.Shutdown(ctx)
}
