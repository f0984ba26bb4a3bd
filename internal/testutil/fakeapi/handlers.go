package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/auth"
	"eventhub/internal/models"
)

func profileOf(u models.SessionUser) models.Profile {
	return models.Profile{
		ID:        u.ID,
		Login:     u.Login,
		Name:      u.Name,
		Surname:   u.Surname,
		Email:     u.Email,
		Telegram:  u.Telegram,
		AvatarURL: u.AvatarURL,
	}
}

func summaryOf(u models.SessionUser) models.UserSummary {
	return models.UserSummary{ID: u.ID, Name: u.Name, Surname: u.Surname, Login: u.Login}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	var found *account
	for _, acc := range s.accounts {
		if acc.user.Login == req.Login {
			found = acc
			break
		}
	}
	ttl := s.tokenTTL
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Неверный логин или пароль")
		return
	}

	token, err := auth.GenerateToken(s.secret, found.user.ID, found.user.Login, found.user.Role, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	user := found.user
	writeJSON(w, http.StatusOK, models.AuthResponse{User: &user, Token: token})
}

func (s *Server) account(r *http.Request) *account {
	return s.accounts[currentUserID(r)]
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(acc.user))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	models.ProfileFields{Name: upd.Name, Surname: upd.Surname, Email: upd.Email, Telegram: upd.Telegram}.Apply(&acc.user)
	writeJSON(w, http.StatusOK, profileOf(acc.user))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.OldPassword)) != nil {
		writeError(w, http.StatusBadRequest, "Текущий пароль указан неверно")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	acc.passwordHash = hash
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Файл не передан")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeError(w, http.StatusBadRequest, "Файл не прочитан")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	acc.user.AvatarURL = "/static/avatars/" + acc.user.ID + "/" + header.Filename
	writeJSON(w, http.StatusOK, profileOf(acc.user))
}

func (s *Server) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	acc.user.AvatarURL = ""
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	writeJSON(w, http.StatusOK, acc.prefs)
}

func (s *Server) handleUpdatePrefs(w http.ResponseWriter, r *http.Request) {
	var prefs models.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(r)
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	acc.prefs = prefs
	writeJSON(w, http.StatusOK, acc.prefs)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	var req models.UserSearch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	query := strings.ToLower(strings.TrimSpace(req.Query))

	s.mu.Lock()
	out := []models.UserSummary{}
	for _, acc := range s.accounts {
		hay := strings.ToLower(acc.user.Login + " " + acc.user.Name + " " + acc.user.Surname)
		if query == "" || strings.Contains(hay, query) {
			out = append(out, summaryOf(acc.user))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[mux.Vars(r)["id"]]
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	writeJSON(w, http.StatusOK, summaryOf(acc.user))
}

func (s *Server) handleGetUserByLogin(w http.ResponseWriter, r *http.Request) {
	login := mux.Vars(r)["login"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.Login == login {
			writeJSON(w, http.StatusOK, summaryOf(acc.user))
			return
		}
	}
	writeError(w, http.StatusNotFound, "Пользователь не найден")
}

func (s *Server) sortedEvents(match func(*models.Event) bool) []models.Event {
	out := []models.Event{}
	for _, ev := range s.events {
		if match(ev) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeStart.Before(out[j].TimeStart) })
	return out
}

func (s *Server) handleInvited(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := map[string]bool{}
	for _, id := range s.invites[currentUserID(r)] {
		ids[id] = true
	}
	out := s.sortedEvents(func(ev *models.Event) bool { return ids[ev.ID] })
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	var filter models.EventSearch
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	name := strings.ToLower(strings.TrimSpace(filter.Name))

	s.mu.Lock()
	out := s.sortedEvents(func(ev *models.Event) bool {
		if name != "" && !strings.Contains(strings.ToLower(ev.Name), name) {
			return false
		}
		if filter.Status != "" && ev.Status != filter.Status {
			return false
		}
		if filter.Type != "" && ev.Type != filter.Type {
			return false
		}
		if filter.From != nil && ev.TimeEnd.Before(*filter.From) {
			return false
		}
		if filter.To != nil && ev.TimeStart.After(*filter.To) {
			return false
		}
		return true
	})
	s.mu.Unlock()

	if len(out) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req models.EventSuggestion
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	ev := models.Event{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		TimeStart:      req.TimeStart,
		TimeEnd:        req.TimeEnd,
		Location:       req.Location,
		Type:           req.Type,
		Status:         models.StatusSuggested,
		CreatedByID:    currentUserID(r),
		Keywords:       req.Keywords,
		ParticipantIDs: req.ParticipantIDs,
		TeamIDs:        req.TeamIDs,
	}

	s.mu.Lock()
	s.events[ev.ID] = &ev
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleSetStatus(status models.EventStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ev := s.events[mux.Vars(r)["id"]]
		if ev == nil {
			writeError(w, http.StatusNotFound, "Мероприятие не найдено")
			return
		}
		if ev.Status != models.StatusSuggested {
			writeError(w, http.StatusConflict, "Мероприятие уже рассмотрено")
			return
		}
		ev.Status = status
		writeJSON(w, http.StatusOK, ev)
	}
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	status := models.InvitationStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Неизвестный статус")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[mux.Vars(r)["id"]]
	if ev == nil {
		writeError(w, http.StatusNotFound, "Мероприятие не найдено")
		return
	}
	userID := currentUserID(r)
	participants := ev.ParticipantIDs[:0:0]
	for _, id := range ev.ParticipantIDs {
		if id != userID {
			participants = append(participants, id)
		}
	}
	if status == models.InvitationAccepted {
		participants = append(participants, userID)
	}
	ev.ParticipantIDs = participants
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[mux.Vars(r)["id"]]
	if ev == nil {
		writeError(w, http.StatusNotFound, "Мероприятие не найдено")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var upd models.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[mux.Vars(r)["id"]]
	if ev == nil {
		writeError(w, http.StatusNotFound, "Мероприятие не найдено")
		return
	}
	if upd.Name != nil {
		ev.Name = *upd.Name
	}
	if upd.Description != nil {
		ev.Description = *upd.Description
	}
	if upd.TimeStart != nil {
		ev.TimeStart = *upd.TimeStart
	}
	if upd.TimeEnd != nil {
		ev.TimeEnd = *upd.TimeEnd
	}
	if upd.Location != nil {
		ev.Location = *upd.Location
	}
	if upd.Keywords != nil {
		ev.Keywords = upd.Keywords
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	if s.events[id] == nil {
		writeError(w, http.StatusNotFound, "Мероприятие не найдено")
		return
	}
	delete(s.events, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchTeams(w http.ResponseWriter, r *http.Request) {
	var filter models.TeamSearch
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	name := strings.ToLower(strings.TrimSpace(filter.Name))

	s.mu.Lock()
	out := []models.Team{}
	for _, team := range s.teams {
		if name == "" || strings.Contains(strings.ToLower(team.Name), name) {
			out = append(out, *team)
		}
	}
	s.mu.Unlock()

	if len(out) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req models.TeamCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, team := range s.teams {
		if strings.EqualFold(team.Name, req.Name) {
			writeError(w, http.StatusConflict, "Команда с таким названием уже существует")
			return
		}
	}

	team := &models.Team{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     currentUserID(r),
		Users:       []models.UserSummary{},
	}
	for _, id := range req.UserIDs {
		if acc := s.accounts[id]; acc != nil {
			team.Users = append(team.Users, summaryOf(acc.user))
		}
	}
	s.teams[team.ID] = team
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.teams[mux.Vars(r)["id"]]
	if team == nil {
		writeError(w, http.StatusNotFound, "Команда не найдена")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	team := s.teams[id]
	if team == nil {
		writeError(w, http.StatusNotFound, "Команда не найдена")
		return
	}
	if team.OwnerID != currentUserID(r) {
		writeError(w, http.StatusForbidden, "Удалить команду может только владелец")
		return
	}
	delete(s.teams, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req models.TeamMember
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.teams[mux.Vars(r)["id"]]
	if team == nil {
		writeError(w, http.StatusNotFound, "Команда не найдена")
		return
	}
	acc := s.accounts[req.UserID]
	if acc == nil {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	if team.HasMember(req.UserID) {
		writeError(w, http.StatusConflict, "Пользователь уже в команде")
		return
	}
	team.Users = append(team.Users, summaryOf(acc.user))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.teams[vars["id"]]
	if team == nil {
		writeError(w, http.StatusNotFound, "Команда не найдена")
		return
	}
	users := team.Users[:0:0]
	for _, u := range team.Users {
		if u.ID != vars["userId"] {
			users = append(users, u)
		}
	}
	team.Users = users
	w.WriteHeader(http.StatusNoContent)
}
