package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"planahead/internal/auth"
	"planahead/internal/config"
	"planahead/internal/http/handler"
	mw "planahead/internal/http/middleware"
	"planahead/internal/observability"
)

type Deps struct {
	DB        *gorm.DB
	JWT       *auth.JWT
	Whitelist *auth.Whitelist
	Plans     handler.PlanService
	Reminders handler.ReminderScheduler
	Places    handler.PlaceSearcher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Whitelist: d.Whitelist, Logger: d.Logger}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(d.JWT)).Get("/me", me.Me)

	planH := &handler.PlanHandler{Svc: d.Plans, Reminders: d.Reminders, Logger: d.Logger}
	r.Route("/plans", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Post("/", planH.Create)
		r.Get("/", planH.List)
		r.Get("/{id}", planH.Get)
		r.Put("/{id}", planH.Update)
	})

	placeH := &handler.PlaceHandler{Search: d.Places, Logger: d.Logger}
	r.With(auth.RequireAuth(d.JWT)).Post("/places/search", placeH.SearchText)

	return r
}
