package http

import (
	"log/slog"
	"net/http"

	"blog-lab/auth"
	"blog-lab/hub"
	"blog-lab/observability"
	"blog-lab/repositories"
	"blog-lab/services"
	"blog-lab/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Deps is everything the router needs; main assembles it once.
type Deps struct {
	Log           *slog.Logger
	Tokens        *auth.TokenManager
	Auth          services.IAuthService
	Blogs         services.IBlogService
	Features      services.IFeatureRequestService
	Engine        *workflow.Engine
	Comments      repositories.ICommentRepository
	Notifications *hub.NotificationHub
	Rooms         *hub.RoomRegistry
	Monitoring    *observability.MonitoringManager
}

func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(deps.Log))

	authed := AuthMiddleware(deps.Tokens)
	public := OptionalAuthMiddleware(deps.Tokens)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})

	r.Mount("/auth", NewAuthHandler(deps.Auth).Routes())
	r.Mount("/blogs", NewBlogHandler(deps.Blogs, deps.Engine, deps.Comments).Routes(authed, public))

	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Mount("/features", NewFeatureHandler(deps.Features).Routes())
		r.Mount("/ws", NewStreamHandler(deps.Log, deps.Notifications, deps.Rooms).Routes())
		r.Mount("/ops", NewOpsHandler(deps.Notifications, deps.Rooms, deps.Monitoring).Routes())
	})

	return r
}
