package console

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventhub/internal/apierr"
	"eventhub/internal/eventlist"
	"eventhub/internal/lookup"
	"eventhub/internal/models"
	"eventhub/internal/notify"
	"eventhub/internal/router"
)

// maxAvatarSize ограничивает размер загружаемого аватара
const maxAvatarSize = 10 << 20

type homeView struct {
	User     *models.SessionUser `json:"user"`
	Upcoming []models.Event      `json:"upcoming"`
	Unread   int                 `json:"unread"`
}

type eventsView struct {
	eventlist.Lists
	Empty bool `json:"empty"`
}

type notificationsView struct {
	Items  []notify.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fail отвечает ошибкой доменного API. Отмененный запрос остается без ответа:
// клиент уже ушел.
func (s *Server) fail(w http.ResponseWriter, err error, fallback string) {
	if apierr.IsCanceled(err) {
		return
	}
	if errors.Is(err, lookup.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status := http.StatusUnprocessableEntity
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		status = apiErr.StatusCode
		if status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
	}
	writeError(w, status, apierr.Message(err, fallback))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный запрос")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": s.session.State().Authenticated(),
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"page":    "login",
		"loading": st.Loading,
		"error":   st.Error,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.metrics.ObserveLoginThrottled()
		writeError(w, http.StatusTooManyRequests, "Слишком много попыток входа, попробуйте позже")
		return
	}

	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.Login(r.Context(), req); err != nil {
		s.fail(w, err, "Не удалось войти")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     s.session.State().User,
		"redirect": router.Home,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(); err != nil {
		s.log.WithError(err).Error("не удалось завершить сессию")
		writeError(w, http.StatusInternalServerError, "Не удалось выйти")
		return
	}
	w.Header().Set("Location", router.Login)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	invited, err := s.api.Events.Invited(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось загрузить приглашения")
		return
	}
	s.feed.Sync(invited)

	writeJSON(w, http.StatusOK, homeView{
		User:     s.session.State().User,
		Upcoming: eventlist.Partition(invited, s.now()).Upcoming,
		Unread:   s.feed.Unread(),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	invited, err := s.api.Events.Invited(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось загрузить уведомления")
		return
	}
	s.feed.Sync(invited)
	writeJSON(w, http.StatusOK, notificationsView{Items: s.feed.List(), Unread: s.feed.Unread()})
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	if !s.feed.MarkRead(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "Уведомление не найдено")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	s.feed.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile.Load(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось загрузить профиль")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}
	p, err := s.profile.Update(r.Context(), upd)
	if err != nil {
		s.fail(w, err, "Не удалось обновить профиль")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChange
	if !decode(w, r, &req) {
		return
	}
	if err := s.profile.ChangePassword(r.Context(), req); err != nil {
		s.fail(w, err, "Не удалось сменить пароль")
		return
	}

	// подтверждение показывается один раз
	changed := s.profile.Store().State().PasswordChanged
	s.profile.Store().ClearPasswordChanged()
	writeJSON(w, http.StatusOK, map[string]bool{"passwordChanged": changed})
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Выберите файл аватара")
		return
	}
	defer file.Close()

	p, err := s.profile.UploadAvatar(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, err, "Не удалось загрузить аватар")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile.DeleteAvatar(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось удалить аватар")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.api.Users.Preferences(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось загрузить настройки уведомлений")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.NotificationPreferences
	if !decode(w, r, &prefs) {
		return
	}
	out, err := s.api.Users.UpdatePreferences(r.Context(), prefs)
	if err != nil {
		s.fail(w, err, "Не удалось сохранить настройки уведомлений")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EventSearch{
		Name:   strings.TrimSpace(q.Get("name")),
		Status: models.EventStatus(q.Get("status")),
		Type:   models.EventType(q.Get("type")),
	}

	events, err := s.api.Events.Search(r.Context(), filter)
	if err != nil {
		s.fail(w, err, "Не удалось найти мероприятия")
		return
	}
	writeJSON(w, http.StatusOK, eventsView{
		Lists: eventlist.Partition(events, s.now()),
		Empty: len(events) == 0,
	})
}

func (s *Server) handleSuggestEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventSuggestion
	if !decode(w, r, &req) {
		return
	}
	ev, err := s.api.Events.Suggest(r.Context(), req)
	if err != nil {
		s.fail(w, err, "Не удалось предложить мероприятие")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.api.Events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err, "Не удалось загрузить мероприятие")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var upd models.EventUpdate
	if !decode(w, r, &upd) {
		return
	}
	ev, err := s.api.Events.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.fail(w, err, "Не удалось обновить мероприятие")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err, "Не удалось удалить мероприятие")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	status := models.InvitationStatus(r.URL.Query().Get("status"))
	if err := s.api.Events.Respond(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		s.fail(w, err, "Не удалось ответить на приглашение")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	events, err := s.api.Events.Search(r.Context(), models.EventSearch{})
	if err != nil {
		s.fail(w, err, "Не удалось загрузить мероприятия")
		return
	}
	userID := ""
	if u := s.session.State().User; u != nil {
		userID = u.ID
	}
	writeJSON(w, http.StatusOK, eventlist.Feedback(events, userID, s.now()))
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.api.Teams.Search(r.Context(), models.TeamSearch{Name: strings.TrimSpace(r.URL.Query().Get("name"))})
	if err != nil {
		s.fail(w, err, "Не удалось найти команды")
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req models.TeamCreate
	if !decode(w, r, &req) {
		return
	}
	team, err := s.api.Teams.Create(r.Context(), req)
	if err != nil {
		s.fail(w, err, "Не удалось создать команду")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.api.Teams.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err, "Не удалось загрузить команду")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Teams.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err, "Не удалось удалить команду")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req models.TeamMember
	if !decode(w, r, &req) {
		return
	}
	if err := s.api.Teams.AddMember(r.Context(), chi.URLParam(r, "id"), req.UserID); err != nil {
		s.fail(w, err, "Не удалось добавить участника")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Teams.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		s.fail(w, err, "Не удалось исключить участника")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFindUsers поиск участников по мере ввода. Устаревший запрос получает 204.
func (s *Server) handleFindUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userFind.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, err, "Не удалось найти пользователей")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	events, err := s.api.Applications.Moderation(r.Context())
	if err != nil {
		s.fail(w, err, "Не удалось загрузить заявки")
		return
	}
	writeJSON(w, http.StatusOK, s.api.Applications.Cards(r.Context(), events))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Applications.Confirm(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err, "Не удалось подтвердить заявку")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Applications.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err, "Не удалось отклонить заявку")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
