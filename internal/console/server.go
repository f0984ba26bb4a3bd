// Package console локальная веб-консоль клиента.
//
// Консоль отдает клиентские маршруты (/login, /, /events и т.д.) в виде
// JSON-страниц на localhost. Перед каждой страницей срабатывают те же
// охранники, что и в CLI: вместо экрана входа браузер получает 302.
package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"eventhub/internal/api"
	"eventhub/internal/logging"
	"eventhub/internal/lookup"
	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/notify"
	"eventhub/internal/profile"
	"eventhub/internal/router"
	"eventhub/internal/session"
)

// Deps зависимости консоли
type Deps struct {
	Session       *session.Store
	Profile       *profile.Service
	API           *api.API
	Router        *router.Router
	Notifications *notify.Feed
	Metrics       *metrics.Metrics
	Logger        logrus.FieldLogger

	// LoginPerMinute ограничивает попытки входа, <= 0 снимает ограничение
	LoginPerMinute int
	SearchDebounce time.Duration
	Now            func() time.Time
}

// Server локальная консоль
type Server struct {
	session  *session.Store
	profile  *profile.Service
	api      *api.API
	router   *router.Router
	feed     *notify.Feed
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	limiter  *rate.Limiter
	now      func() time.Time
	userFind *lookup.Searcher[models.UserSummary]
}

// New создает консоль
func New(d Deps) *Server {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if d.LoginPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.LoginPerMinute)), d.LoginPerMinute)
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	feed := d.Notifications
	if feed == nil {
		feed = notify.NewFeed(0)
	}

	s := &Server{
		session: d.Session,
		profile: d.Profile,
		api:     d.API,
		router:  d.Router,
		feed:    feed,
		metrics: d.Metrics,
		log:     logging.Component(d.Logger, "console"),
		limiter: limiter,
		now:     now,
	}
	s.userFind = lookup.New[models.UserSummary](s.api.Users.Search, d.SearchDebounce, 2)
	return s
}

// Handler настраивает маршруты консоли
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.instrument)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Страница не найдена")
	})

	// Служебные маршруты (без охранников)
	r.Group(func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
	})

	// Страница входа только для гостей
	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Login))
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
	})

	// Защищенные страницы
	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Home))
		r.Get("/", s.handleHome)
		r.Post("/logout", s.handleLogout)
		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/read", s.handleReadAllNotifications)
		r.Post("/notifications/{id}/read", s.handleReadNotification)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.ProfileEdit))
		r.Get("/profile/me/edit", s.handleGetProfile)
		r.Patch("/profile/me/edit", s.handleUpdateProfile)
		r.Post("/profile/me/edit/password", s.handleChangePassword)
		r.Post("/profile/me/edit/avatar", s.handleUploadAvatar)
		r.Delete("/profile/me/edit/avatar", s.handleDeleteAvatar)
		r.Get("/profile/me/edit/notifications", s.handleGetPreferences)
		r.Patch("/profile/me/edit/notifications", s.handleUpdatePreferences)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Events))
		r.Get("/events", s.handleEvents)
		r.Post("/events", s.handleSuggestEvent)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Patch("/events/{id}", s.handleUpdateEvent)
		r.Delete("/events/{id}", s.handleDeleteEvent)
		r.Post("/events/{id}/respond", s.handleRespond)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Feedback))
		r.Get("/feedback", s.handleFeedback)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Teams))
		r.Get("/teams", s.handleTeams)
		r.Post("/teams", s.handleCreateTeam)
		r.Get("/teams/users", s.handleFindUsers)
		r.Get("/teams/{id}", s.handleGetTeam)
		r.Delete("/teams/{id}", s.handleDeleteTeam)
		r.Post("/teams/{id}/members", s.handleAddMember)
		r.Delete("/teams/{id}/members/{userId}", s.handleRemoveMember)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.router.Middleware(router.Applications))
		r.Get("/applications", s.handleApplications)
		r.Post("/applications/{id}/confirm", s.handleConfirm)
		r.Post("/applications/{id}/reject", s.handleReject)
	})

	return r
}

// ListenAndServe запускает консоль и останавливает ее при отмене ctx
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("консоль запущена")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.log.Info("консоль остановлена")
		return nil
	}
}
