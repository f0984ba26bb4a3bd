package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/apierr"
	"eventhub/internal/httpclient"
	"eventhub/internal/logging"
	"eventhub/internal/models"
	"eventhub/internal/testutil/fakeapi"
)

type harness struct {
	srv   *fakeapi.Server
	api   *API
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{srv: fakeapi.New(t)}
	client := httpclient.New(httpclient.Config{BaseURL: h.srv.URL, Timeout: 5 * time.Second},
		func() string { return h.token }, logging.Discard())
	h.api = New(client)
	return h
}

// loginAs регистрирует пользователя и подставляет его токен
func (h *harness) loginAs(u models.SessionUser) models.SessionUser {
	u = h.srv.AddUser(u, "secret1")
	h.token = h.srv.Token(u.ID)
	return u
}

func apiMessage(t *testing.T, err error) string {
	t.Helper()
	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr), "ожидалась *apierr.Error, получено %T: %v", err, err)
	return apiErr.Message
}

func TestAuth_Login(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser(models.SessionUser{ID: "u1", Login: "иван", Name: "Иван"}, "secret1")

	tests := []struct {
		name    string
		req     models.LoginRequest
		wantErr string
		calls   int
	}{
		{
			name:  "Успешный вход",
			req:   models.LoginRequest{Login: "иван", Password: "secret1"},
			calls: 1,
		},
		{
			name:    "Неверный пароль",
			req:     models.LoginRequest{Login: "иван", Password: "wrong"},
			wantErr: "Неверный логин или пароль",
			calls:   2,
		},
		{
			name:    "Пустой логин не уходит в сеть",
			req:     models.LoginRequest{Password: "secret1"},
			wantErr: "введите логин",
			calls:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.api.Auth.Login(context.Background(), tt.req)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, apiMessage(t, err))
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "u1", resp.User.ID)
				assert.Equal(t, models.RoleMember, resp.User.Role)
				assert.NotEmpty(t, resp.Token)
			}
			assert.Equal(t, tt.calls, h.srv.Calls(http.MethodPost, "/auth/login"))
		})
	}
}

func TestAuth_LoginIncompleteResponse(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail(http.MethodPost, "/auth/login", http.StatusOK, `{"user":{"id":"u1"}}`)

	_, err := h.api.Auth.Login(context.Background(), models.LoginRequest{Login: "иван", Password: "secret1"})
	assert.Equal(t, "Сервер вернул неполный ответ при входе", apiMessage(t, err))
}

func TestRequests_CarryBearer(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})

	_, err := h.api.Events.Invited(context.Background())
	require.NoError(t, err)

	reqs := h.srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+h.token, reqs[0].Authorization)
}

func TestRequests_WithoutToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.api.Users.Profile(context.Background())
	assert.Equal(t, "Unauthorized", apiMessage(t, err))
	assert.Equal(t, "", h.srv.Requests()[0].Authorization)
}

func TestEvents_SearchEmpty(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	h.srv.AddEvent(models.Event{ID: "e1", Name: "Sync", Status: models.StatusSuggested, Type: models.EventGeneral})

	events, err := h.api.Events.Search(context.Background(), models.EventSearch{Name: "Sync", Status: models.StatusConfirmed})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEvents_Search(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.srv.AddEvent(models.Event{ID: "e1", Name: "Weekly sync", Status: models.StatusConfirmed, TimeStart: start})
	h.srv.AddEvent(models.Event{ID: "e2", Name: "Retro", Status: models.StatusConfirmed, TimeStart: start})
	h.srv.AddEvent(models.Event{ID: "e3", Name: "Sync planning", Status: models.StatusConfirmed, TimeStart: start.Add(time.Hour)})

	events, err := h.api.Events.Search(context.Background(), models.EventSearch{Name: "sync"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)
}

func TestEvents_Lifecycle(t *testing.T) {
	h := newHarness(t)
	u := h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	ev, err := h.api.Events.Suggest(ctx, models.EventSuggestion{
		Name:      "Хакатон",
		TimeStart: start,
		TimeEnd:   start.Add(4 * time.Hour),
		Type:      models.EventGroup,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuggested, ev.Status)
	assert.Equal(t, u.ID, ev.CreatedByID)

	name := "Хакатон 2026"
	updated, err := h.api.Events.Update(ctx, ev.ID, models.EventUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	require.NoError(t, h.api.Events.Confirm(ctx, ev.ID))
	got, err := h.api.Events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	err = h.api.Events.Reject(ctx, ev.ID)
	assert.Equal(t, "Мероприятие уже рассмотрено", apiMessage(t, err))

	require.NoError(t, h.api.Events.Respond(ctx, ev.ID, models.InvitationAccepted))
	stored, _ := h.srv.Event(ev.ID)
	assert.Contains(t, stored.ParticipantIDs, u.ID)

	require.NoError(t, h.api.Events.Delete(ctx, ev.ID))
	_, err = h.api.Events.Get(ctx, ev.ID)
	assert.Equal(t, "Мероприятие не найдено", apiMessage(t, err))
}

func TestEvents_RespondSendsStatusQuery(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	h.srv.AddEvent(models.Event{ID: "e1", Name: "Sync"})

	require.NoError(t, h.api.Events.Respond(context.Background(), "e1", models.InvitationMaybe))

	err := h.api.Events.Respond(context.Background(), "e1", "later")
	assert.Equal(t, "Неизвестный ответ на приглашение", apiMessage(t, err))
	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, "/Event/{id}/respond_invitation"))
}

func TestEvents_ValidationNeverReachesNetwork(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		s    models.EventSuggestion
		want string
	}{
		{
			name: "Пустое название",
			s:    models.EventSuggestion{TimeStart: start, TimeEnd: start.Add(time.Hour), Type: models.EventGeneral},
			want: "укажите название мероприятия",
		},
		{
			name: "Конец раньше начала",
			s:    models.EventSuggestion{Name: "A", TimeStart: start, TimeEnd: start.Add(-time.Hour), Type: models.EventGeneral},
			want: "окончание должно быть позже начала",
		},
		{
			name: "Неизвестный тип",
			s:    models.EventSuggestion{Name: "A", TimeStart: start, TimeEnd: start.Add(time.Hour), Type: "party"},
			want: "неизвестный тип мероприятия",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.api.Events.Suggest(context.Background(), tt.s)
			assert.Equal(t, tt.want, apiMessage(t, err))
		})
	}
	assert.Empty(t, h.srv.Requests())
}

func TestEvents_Invited(t *testing.T) {
	h := newHarness(t)
	u := h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	h.srv.AddEvent(models.Event{ID: "e1", Name: "Sync"})
	h.srv.AddEvent(models.Event{ID: "e2", Name: "Retro"})
	h.srv.Invite(u.ID, "e2")

	events, err := h.api.Events.Invited(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}

func TestErrors_Normalized(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "Структурированная ошибка",
			status: http.StatusConflict,
			body:   `{"error":"Команда уже существует"}`,
			want:   "Команда уже существует",
		},
		{
			name:   "Тело без поля error",
			status: http.StatusInternalServerError,
			body:   `<html>oops</html>`,
			want:   "request failed with status code 500",
		},
		{
			name:   "Поле error не строка",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":1}}`,
			want:   "request failed with status code 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
			h.srv.Fail(http.MethodPost, "/teams", tt.status, tt.body)

			_, err := h.api.Teams.Create(context.Background(), models.TeamCreate{Name: "A"})
			assert.Equal(t, tt.want, apiMessage(t, err))
		})
	}
}

func TestErrors_TransportFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.Close()

	_, err := h.api.Events.Invited(context.Background())
	msg := apiMessage(t, err)
	assert.NotEmpty(t, msg)
	assert.NotEqual(t, apierr.DefaultMessage, msg)
}

func TestErrors_CanceledRequest(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	release := h.srv.Hold(http.MethodGet, "/User/me/profile")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.api.Users.Profile(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.srv.Calls(http.MethodGet, "/User/me/profile") == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, apierr.ErrCanceled)
	assert.True(t, apierr.IsCanceled(err))
}

func TestUsers_Profile(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван", Name: "Иван", Surname: "Петров", Email: "ivan@example.com"})
	ctx := context.Background()

	p, err := h.api.Users.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Петров", p.Surname)

	tg := "@ivan"
	p, err = h.api.Users.UpdateProfile(ctx, models.ProfileUpdate{Telegram: &tg})
	require.NoError(t, err)
	assert.Equal(t, "@ivan", p.Telegram)
	assert.Equal(t, "Иван", p.Name)

	bad := "ivan"
	_, err = h.api.Users.UpdateProfile(ctx, models.ProfileUpdate{Email: &bad})
	assert.Equal(t, "некорректный email", apiMessage(t, err))
}

func TestUsers_ChangePassword(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	ctx := context.Background()

	tests := []struct {
		name    string
		req     models.PasswordChange
		wantErr string
	}{
		{name: "Короткий пароль", req: models.PasswordChange{OldPassword: "secret1", NewPassword: "123"}, wantErr: "новый пароль слишком короткий"},
		{name: "Неверный текущий пароль", req: models.PasswordChange{OldPassword: "nope", NewPassword: "secret2"}, wantErr: "Текущий пароль указан неверно"},
		{name: "Успешная смена", req: models.PasswordChange{OldPassword: "secret1", NewPassword: "secret2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.api.Users.ChangePassword(ctx, tt.req)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, apiMessage(t, err))
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := h.api.Auth.Login(ctx, models.LoginRequest{Login: "иван", Password: "secret2"})
	assert.NoError(t, err)
}

func TestUsers_Avatar(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	ctx := context.Background()

	p, err := h.api.Users.UploadAvatar(ctx, "/tmp/photos/me.png", bytes.NewReader([]byte("\x89PNG")))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "/static/avatars/u1/me.png", p.AvatarURL)

	// сервер отвечает 204 без тела
	p, err = h.api.Users.DeleteAvatar(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	profile, err := h.api.Users.Profile(ctx)
	require.NoError(t, err)
	assert.Empty(t, profile.AvatarURL)
}

func TestUsers_PreferencesAndSearch(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "иван", Name: "Иван"})
	h.srv.AddUser(models.SessionUser{ID: "u2", Login: "petr", Name: "Пётр"}, "secret1")
	ctx := context.Background()

	prefs, err := h.api.Users.UpdatePreferences(ctx, models.NotificationPreferences{Email: true, RemindBeforeMin: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, prefs.RemindBeforeMin)

	prefs, err = h.api.Users.Preferences(ctx)
	require.NoError(t, err)
	assert.True(t, prefs.Email)

	users, err := h.api.Users.Search(ctx, "пётр")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)

	user, err := h.api.Users.GetByLogin(ctx, "petr")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
}

func TestTeams_Lifecycle(t *testing.T) {
	h := newHarness(t)
	owner := h.loginAs(models.SessionUser{ID: "u1", Login: "иван"})
	member := h.srv.AddUser(models.SessionUser{ID: "u2", Login: "petr"}, "secret1")
	ctx := context.Background()

	teams, err := h.api.Teams.Search(ctx, models.TeamSearch{Name: "Backend"})
	require.NoError(t, err)
	assert.Empty(t, teams)

	team, err := h.api.Teams.Create(ctx, models.TeamCreate{Name: "Backend", Description: "API"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, team.OwnerID)

	require.NoError(t, h.api.Teams.AddMember(ctx, team.ID, member.ID))
	got, err := h.api.Teams.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.True(t, got.HasMember(member.ID))

	err = h.api.Teams.AddMember(ctx, team.ID, member.ID)
	assert.Equal(t, "Пользователь уже в команде", apiMessage(t, err))

	require.NoError(t, h.api.Teams.RemoveMember(ctx, team.ID, member.ID))
	stored, _ := h.srv.Team(team.ID)
	assert.False(t, stored.HasMember(member.ID))

	teams, err = h.api.Teams.Search(ctx, models.TeamSearch{Name: "back"})
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	require.NoError(t, h.api.Teams.Delete(ctx, team.ID))
	_, ok := h.srv.Team(team.ID)
	assert.False(t, ok)
}

func TestApplications_ModerationNoContent(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "admin", Role: models.RoleAdministrator})
	h.srv.Fail(http.MethodPost, "/Event/search", http.StatusNoContent, "")

	events, err := h.api.Applications.Moderation(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestApplications_ModerationOnlySuggested(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "u1", Login: "admin", Role: models.RoleAdministrator})
	h.srv.AddEvent(models.Event{ID: "e1", Status: models.StatusSuggested})
	h.srv.AddEvent(models.Event{ID: "e2", Status: models.StatusConfirmed})

	events, err := h.api.Applications.Moderation(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)

	require.NoError(t, h.api.Applications.Confirm(context.Background(), "e1"))
	events, err = h.api.Applications.Moderation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestApplications_CardsDegradeOnMissingCreator(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "admin", Login: "admin", Role: models.RoleAdministrator})
	h.srv.AddUser(models.SessionUser{ID: "u2", Login: "petr", Name: "Пётр", Surname: "Иванов"}, "secret1")
	h.srv.AddUser(models.SessionUser{ID: "u3", Login: "anon"}, "secret1")

	events := []models.Event{
		{ID: "e1", CreatedByID: "u2"},
		{ID: "e2", CreatedByID: "ghost"},
		{ID: "e3", CreatedByID: "u2"},
		{ID: "e4", CreatedByID: "u3"},
		{ID: "e5"},
	}

	cards := h.api.Applications.Cards(context.Background(), events)
	require.Len(t, cards, 5)
	assert.Equal(t, "Пётр Иванов", cards[0].CreatorLabel)
	assert.Equal(t, UnknownCreator, cards[1].CreatorLabel)
	assert.Nil(t, cards[1].Creator)
	assert.Equal(t, "Пётр Иванов", cards[2].CreatorLabel)
	assert.Equal(t, "anon", cards[3].CreatorLabel)
	assert.Equal(t, UnknownCreator, cards[4].CreatorLabel)

	// создатель запрашивается один раз
	assert.Equal(t, 1, countPath(h.srv.Requests(), "/User/u2"))
}

func countPath(reqs []fakeapi.Request, path string) int {
	n := 0
	for _, r := range reqs {
		if r.Path == path {
			n++
		}
	}
	return n
}

func TestEntityCalls_EmptyResponse(t *testing.T) {
	name := "Новое имя"
	tests := []struct {
		name    string
		method  string
		route   string
		status  int
		body    string
		call    func(ctx context.Context, a *API) (any, error)
		wantErr string
	}{
		{
			name: "Пользователь 204", method: http.MethodGet, route: "/User/{id}", status: http.StatusNoContent,
			call:    func(ctx context.Context, a *API) (any, error) { return a.Users.Get(ctx, "u2") },
			wantErr: "Не удалось загрузить пользователя",
		},
		{
			name: "Пользователь по логину null", method: http.MethodGet, route: "/User/login/{login}", status: http.StatusOK, body: "null",
			call:    func(ctx context.Context, a *API) (any, error) { return a.Users.GetByLogin(ctx, "petr") },
			wantErr: "Не удалось загрузить пользователя",
		},
		{
			name: "Профиль 204", method: http.MethodGet, route: "/User/me/profile", status: http.StatusNoContent,
			call:    func(ctx context.Context, a *API) (any, error) { return a.Users.Profile(ctx) },
			wantErr: "Не удалось загрузить профиль",
		},
		{
			name: "Обновление профиля 204", method: http.MethodPatch, route: "/User/me/profile", status: http.StatusNoContent,
			call: func(ctx context.Context, a *API) (any, error) {
				return a.Users.UpdateProfile(ctx, models.ProfileUpdate{Name: &name})
			},
			wantErr: "Не удалось обновить профиль",
		},
		{
			name: "Настройки уведомлений пустое тело", method: http.MethodGet, route: "/User/me/notification_preferences", status: http.StatusOK,
			call:    func(ctx context.Context, a *API) (any, error) { return a.Users.Preferences(ctx) },
			wantErr: "Не удалось загрузить настройки уведомлений",
		},
		{
			name: "Мероприятие 204", method: http.MethodGet, route: "/Event/{id}", status: http.StatusNoContent,
			call:    func(ctx context.Context, a *API) (any, error) { return a.Events.Get(ctx, "e1") },
			wantErr: "Не удалось загрузить мероприятие",
		},
		{
			name: "Обновление мероприятия 204", method: http.MethodPatch, route: "/Event/{id}", status: http.StatusNoContent,
			call: func(ctx context.Context, a *API) (any, error) {
				return a.Events.Update(ctx, "e1", models.EventUpdate{Name: &name})
			},
			wantErr: "Не удалось обновить мероприятие",
		},
		{
			name: "Команда 204", method: http.MethodGet, route: "/teams/{id}", status: http.StatusNoContent,
			call:    func(ctx context.Context, a *API) (any, error) { return a.Teams.Get(ctx, "t1") },
			wantErr: "Не удалось загрузить команду",
		},
		{
			name: "Создание команды 204", method: http.MethodPost, route: "/teams", status: http.StatusNoContent,
			call: func(ctx context.Context, a *API) (any, error) {
				return a.Teams.Create(ctx, models.TeamCreate{Name: "Backend"})
			},
			wantErr: "Не удалось создать команду",
		},
		{
			name: "Вход 204", method: http.MethodPost, route: "/auth/login", status: http.StatusNoContent,
			call: func(ctx context.Context, a *API) (any, error) {
				return a.Auth.Login(ctx, models.LoginRequest{Login: "petr", Password: "secret1"})
			},
			wantErr: "Не удалось войти",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.loginAs(models.SessionUser{ID: "u2", Login: "petr", Name: "Пётр"})
			h.srv.Fail(tt.method, tt.route, tt.status, tt.body)

			_, err := tt.call(context.Background(), h.api)
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, apiMessage(t, err))
		})
	}
}

func TestApplications_CardsEmptyCreator(t *testing.T) {
	h := newHarness(t)
	h.loginAs(models.SessionUser{ID: "a1", Login: "admin", Role: models.RoleAdministrator})
	h.srv.Fail(http.MethodGet, "/User/{id}", http.StatusNoContent, "")

	cards := h.api.Applications.Cards(context.Background(), []models.Event{{ID: "e1", CreatedByID: "u2"}})
	require.Len(t, cards, 1)
	assert.Nil(t, cards[0].Creator)
	assert.Equal(t, UnknownCreator, cards[0].CreatorLabel)
}
