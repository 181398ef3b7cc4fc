package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"duewatch/internal/auth"
	"duewatch/internal/config"
	"duewatch/internal/http/handler"
	mw "duewatch/internal/http/middleware"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, engine handler.Engine, forcer handler.Forcer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	ops := &handler.OpsHandler{Engine: engine, Forcer: forcer}
	r.Get("/health", ops.Health)

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/stats", ops.Stats)
		r.Get("/alerts", ops.Alerts)
		r.Post("/force/{policy}", ops.Force)
	})

	return r
}
