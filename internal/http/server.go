// Package http serves the foodgram REST API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	applog "foodgram/internal/log"
	"foodgram/internal/media"
	"foodgram/internal/metrics"
	"foodgram/internal/middleware/security"
	"foodgram/internal/middleware/trace"
	"foodgram/internal/services"
)

// Pinger reports whether a dependency is ready to serve.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr               string
	BaseURL            string
	PageSize           int
	CORSAllowedOrigins []string
	RateLimitRPM       int
	// MediaRoot, when set, is served under /media/.
	MediaRoot string
}

type Deps struct {
	Users         *services.UserService
	Recipes       *services.RecipeService
	Catalog       *services.CatalogService
	ShoppingLists *services.ShoppingListService
	Notifications *services.NotificationService
	Media         media.Store
	DB            Pinger
	Logger        *applog.Logger
}

type Server struct {
	http.Server
	opts Options

	users         *services.UserService
	recipes       *services.RecipeService
	catalog       *services.CatalogService
	shoppingLists *services.ShoppingListService
	notifications *services.NotificationService
	db            Pinger
	logger        *applog.Logger
	present       presenter

	shutdownOnce sync.Once
}

// NewServer wires the routes and returns a ready to run server.
func NewServer(opts Options, deps Deps) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 6
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		opts:          opts,
		users:         deps.Users,
		recipes:       deps.Recipes,
		catalog:       deps.Catalog,
		shoppingLists: deps.ShoppingLists,
		notifications: deps.Notifications,
		db:            deps.DB,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		present:       presenter{media: deps.Media},
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	ips := security.NewIPResolver()
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, ips.ClientIP).Middleware)
	r.Use(metrics.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{"Content-Disposition", trace.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	if s.opts.MediaRoot != "" {
		files := http.StripPrefix("/media/", http.FileServer(http.Dir(s.opts.MediaRoot)))
		r.With(security.MediaCacheMiddleware(86400)).Handle("/media/*", files)
	}

	r.Get("/s/{id}", s.handleShortLink)
	r.Get("/ws/echo/", s.handleEcho)
	r.Get("/ws/notify/", s.handleNotify)

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimitRPM > 0 {
			r.Use(httprate.Limit(s.opts.RateLimitRPM, time.Minute,
				httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
					return ips.ClientIP(r), nil
				}),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeDetail(w, http.StatusTooManyRequests, "Request was throttled.")
				}),
			))
		}
		r.Use(s.authenticate)

		r.Post("/auth/token/login/", s.handleLogin)
		r.With(requireAuth).Post("/auth/token/logout/", s.handleLogout)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleRegister)
			r.Get("/{id}/", s.handleGetUser)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me/", s.handleMe)
				r.Put("/me/avatar/", s.handleSetAvatar)
				r.Delete("/me/avatar/", s.handleDeleteAvatar)
				r.Post("/set_password/", s.handleSetPassword)
				r.Get("/subscriptions/", s.handleSubscriptions)
				r.Post("/{id}/subscribe/", s.handleSubscribe)
				r.Delete("/{id}/subscribe/", s.handleUnsubscribe)
			})
		})

		r.Get("/tags/", s.handleListTags)
		r.Get("/tags/{id}/", s.handleGetTag)
		r.Get("/ingredients/", s.handleListIngredients)
		r.Get("/ingredients/{id}/", s.handleGetIngredient)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", s.handleListRecipes)
			r.Get("/{id}/", s.handleGetRecipe)
			r.Get("/{id}/get-link/", s.handleGetLink)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", s.handleCreateRecipe)
				r.Patch("/{id}/", s.handleUpdateRecipe)
				r.Delete("/{id}/", s.handleDeleteRecipe)
				r.Get("/download_shopping_cart/", s.handleDownloadShoppingCart)
				r.Post("/download_shopping_cart/export/", s.handleExportShoppingCart)
				r.Post("/{id}/favorite/", s.handleAddFavorite)
				r.Delete("/{id}/favorite/", s.handleRemoveFavorite)
				r.Post("/{id}/shopping_cart/", s.handleAddToCart)
				r.Delete("/{id}/shopping_cart/", s.handleRemoveFromCart)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/notifications/", s.handleListNotifications)
			r.Post("/notifications/read/", s.handleMarkNotificationsRead)
		})
	})

	return r
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// pathID parses the {id} URL parameter. Malformed ids are reported as
// missing resources.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
