// Package fakeapi поднимает REST-сервер мероприятий в памяти для тестов.
//
// Сервер повторяет контракт настоящего бэкенда: JWT в заголовке
// Authorization, ошибки в виде {"error": "..."}, 204 на пустой поиск.
// Позволяет подменять ответы маршрутов и задерживать их для тестов отмены.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/auth"
	"eventhub/internal/models"
)

// Request записанный запрос к серверу
type Request struct {
	Method        string
	Path          string
	Route         string
	Authorization string
}

type fault struct {
	status int
	body   string
}

type account struct {
	user         models.SessionUser
	passwordHash []byte
	prefs        models.NotificationPreferences
}

// Server фальшивый бэкенд
type Server struct {
	*httptest.Server

	secret []byte

	mu       sync.Mutex
	accounts map[string]*account
	events   map[string]*models.Event
	invites  map[string][]string // userID -> eventIDs
	teams    map[string]*models.Team
	requests []Request
	faults   map[string]fault
	holds    map[string]chan struct{}
	tokenTTL time.Duration
}

// New запускает сервер и закрывает его по окончании теста
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		secret:   []byte("fakeapi-secret-" + uuid.NewString()),
		accounts: make(map[string]*account),
		events:   make(map[string]*models.Event),
		invites:  make(map[string][]string),
		teams:    make(map[string]*models.Team),
		faults:   make(map[string]fault),
		holds:    make(map[string]chan struct{}),
		tokenTTL: time.Hour,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(func() {
		s.releaseAll()
		s.Close()
	})
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recordMiddleware)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/User/me/profile", s.handleGetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/User/me/profile", s.handleUpdateProfile).Methods(http.MethodPatch)
	protected.HandleFunc("/User/me/password", s.handleChangePassword).Methods(http.MethodPatch)
	protected.HandleFunc("/User/me/avatar", s.handleUploadAvatar).Methods(http.MethodPost)
	protected.HandleFunc("/User/me/avatar", s.handleDeleteAvatar).Methods(http.MethodDelete)
	protected.HandleFunc("/User/me/notification_preferences", s.handleGetPrefs).Methods(http.MethodGet)
	protected.HandleFunc("/User/me/notification_preferences", s.handleUpdatePrefs).Methods(http.MethodPatch)
	protected.HandleFunc("/User/search", s.handleSearchUsers).Methods(http.MethodPost)
	protected.HandleFunc("/User/login/{login}", s.handleGetUserByLogin).Methods(http.MethodGet)
	protected.HandleFunc("/User/{id}", s.handleGetUser).Methods(http.MethodGet)

	protected.HandleFunc("/Event/invited", s.handleInvited).Methods(http.MethodGet)
	protected.HandleFunc("/Event/search", s.handleSearchEvents).Methods(http.MethodPost)
	protected.HandleFunc("/Event/suggest", s.handleSuggest).Methods(http.MethodPost)
	protected.HandleFunc("/Event/{id}/confirm_event", s.handleSetStatus(models.StatusConfirmed)).Methods(http.MethodPost)
	protected.HandleFunc("/Event/{id}/reject_event", s.handleSetStatus(models.StatusRejected)).Methods(http.MethodPost)
	protected.HandleFunc("/Event/{id}/respond_invitation", s.handleRespond).Methods(http.MethodPost)
	protected.HandleFunc("/Event/{id}", s.handleGetEvent).Methods(http.MethodGet)
	protected.HandleFunc("/Event/{id}", s.handleUpdateEvent).Methods(http.MethodPatch)
	protected.HandleFunc("/Event/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)

	protected.HandleFunc("/teams/search", s.handleSearchTeams).Methods(http.MethodPost)
	protected.HandleFunc("/teams", s.handleCreateTeam).Methods(http.MethodPost)
	protected.HandleFunc("/teams/{id}", s.handleGetTeam).Methods(http.MethodGet)
	protected.HandleFunc("/teams/{id}", s.handleDeleteTeam).Methods(http.MethodDelete)
	protected.HandleFunc("/teams/{id}/members", s.handleAddMember).Methods(http.MethodPost)
	protected.HandleFunc("/teams/{id}/members/{userId}", s.handleRemoveMember).Methods(http.MethodDelete)

	return r
}

// AddUser регистрирует пользователя с паролем. Пустой ID заменяется UUID.
func (s *Server) AddUser(u models.SessionUser, password string) models.SessionUser {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleMember
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	return u
}

// AddEvent добавляет мероприятие. Пустой ID заменяется UUID.
func (s *Server) AddEvent(ev models.Event) models.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := ev
	s.events[ev.ID] = &cp
	return ev
}

// Invite добавляет пользователя в приглашенные на мероприятие
func (s *Server) Invite(userID, eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[userID] = append(s.invites[userID], eventID)
}

// AddTeam добавляет команду. Пустой ID заменяется UUID.
func (s *Server) AddTeam(team models.Team) models.Team {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := team
	s.teams[team.ID] = &cp
	return team
}

// Event возвращает копию мероприятия
func (s *Server) Event(id string) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return models.Event{}, false
	}
	return *ev, true
}

// Team возвращает копию команды
func (s *Server) Team(id string) (models.Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return models.Team{}, false
	}
	return *team, true
}

// Token выпускает токен для пользователя в обход /auth/login
func (s *Server) Token(userID string) string {
	s.mu.Lock()
	acc := s.accounts[userID]
	s.mu.Unlock()
	if acc == nil {
		return ""
	}
	token, err := auth.GenerateToken(s.secret, acc.user.ID, acc.user.Login, acc.user.Role, s.tokenTTL)
	if err != nil {
		panic(err)
	}
	return token
}

// SetTokenTTL меняет срок жизни выпускаемых токенов (отрицательный - уже истекшие)
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// Fail подменяет ответ маршрута. route - шаблон gorilla/mux, например "/Event/{id}".
func (s *Server) Fail(method, route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+route] = fault{status: status, body: body}
}

// Hold задерживает ответы маршрута до вызова release
func (s *Server) Hold(method, route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[method+" "+route] = ch
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.holds[method+" "+route] == ch {
			delete(s.holds, method+" "+route)
			close(ch)
		}
	}
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ch := range s.holds {
		close(ch)
		delete(s.holds, key)
	}
}

// Requests возвращает копию журнала запросов
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls считает запросы к маршруту
func (s *Server) Calls(method, route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Route == route {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
