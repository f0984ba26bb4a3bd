// Package router таблица клиентских маршрутов с охранниками.
//
// Сопоставление путей выполняет chi, решения принимают охранники из
// пакета guard. Один и тот же Router обслуживает команды CLI (Resolve)
// и страницы локальной консоли (Middleware).
package router

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventhub/internal/guard"
	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/session"
)

// Клиентские маршруты
const (
	Login        = "/login"
	Home         = "/"
	ProfileEdit  = "/profile/me/edit"
	Events       = "/events"
	Feedback     = "/feedback"
	Teams        = "/teams"
	Applications = "/applications"
)

// DefaultApplicationsRoles роли, которым доступна модерация по умолчанию
var DefaultApplicationsRoles = []string{models.RoleAdministrator}

// StateSource источник состояния сессии. Реализуется *session.Store.
type StateSource interface {
	State() session.State
}

// Route клиентский маршрут
type Route struct {
	Pattern string
	Title   string
	Policy  guard.Policy
}

// Resolution результат навигации
type Resolution struct {
	Path     string
	Pattern  string
	Redirect string
	NotFound bool
}

// Allowed сообщает, что маршрут найден и охранники пропустили навигацию
func (r Resolution) Allowed() bool {
	return !r.NotFound && r.Redirect == ""
}

// Router таблица маршрутов
type Router struct {
	source  StateSource
	mux     *chi.Mux
	routes  []Route
	byPath  map[string]Route
	metrics *metrics.Metrics
}

// Option настраивает Router
type Option func(*Router)

// WithMetrics включает учет навигации
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New строит таблицу маршрутов. applicationsRoles == nil означает
// DefaultApplicationsRoles, пустой срез пускает в модерацию все роли.
func New(source StateSource, applicationsRoles []string, opts ...Option) *Router {
	if applicationsRoles == nil {
		applicationsRoles = DefaultApplicationsRoles
	}

	authed := guard.RequireAuth()
	r := &Router{
		source: source,
		mux:    chi.NewRouter(),
		byPath: make(map[string]Route),
		routes: []Route{
			{Pattern: Login, Title: "Вход", Policy: guard.GuestOnly()},
			{Pattern: Home, Title: "Главная", Policy: authed},
			{Pattern: ProfileEdit, Title: "Профиль", Policy: authed},
			{Pattern: Events, Title: "Мероприятия", Policy: authed},
			{Pattern: Feedback, Title: "Отзывы", Policy: authed},
			{Pattern: Teams, Title: "Команды", Policy: authed},
			{Pattern: Applications, Title: "Заявки", Policy: guard.Chain(authed, guard.RequireRole(applicationsRoles...))},
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, route := range r.routes {
		r.mux.Get(route.Pattern, noop)
		r.byPath[route.Pattern] = route
	}
	return r
}

// Routes возвращает маршруты в порядке объявления
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Resolve решает, можно ли перейти по пути при текущей сессии
func (r *Router) Resolve(path string) Resolution {
	path = normalize(path)
	res := Resolution{Path: path}

	route, ok := r.match(path)
	if !ok {
		res.NotFound = true
		r.metrics.ObserveNavigation("not_found", metrics.OutcomeNotFound)
		return res
	}
	res.Pattern = route.Pattern

	if d := route.Policy(r.source.State()); !d.Allowed {
		res.Redirect = d.Redirect
		r.metrics.ObserveNavigation(route.Pattern, metrics.OutcomeRedirect)
		return res
	}
	r.metrics.ObserveNavigation(route.Pattern, metrics.OutcomeAllowed)
	return res
}

func (r *Router) match(path string) (Route, bool) {
	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, http.MethodGet, path) {
		return Route{}, false
	}
	pattern := rctx.RoutePattern()
	if n := len(rctx.RoutePatterns); n > 0 {
		pattern = rctx.RoutePatterns[n-1]
	}
	route, ok := r.byPath[pattern]
	return route, ok
}

// Middleware применяет охранников маршрута pattern к HTTP-запросам:
// перенаправление превращается в 302, неизвестный маршрут в 404.
func (r *Router) Middleware(pattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			route, ok := r.byPath[pattern]
			if !ok {
				http.NotFound(w, req)
				return
			}
			if d := route.Policy(r.source.State()); !d.Allowed {
				r.metrics.ObserveNavigation(route.Pattern, metrics.OutcomeRedirect)
				http.Redirect(w, req, d.Redirect, http.StatusFound)
				return
			}
			r.metrics.ObserveNavigation(route.Pattern, metrics.OutcomeAllowed)
			next.ServeHTTP(w, req)
		})
	}
}

// normalize убирает query, фрагмент и завершающий слэш
func normalize(path string) string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	if path == "" {
		return Home
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = Home
		}
	}
	return path
}
