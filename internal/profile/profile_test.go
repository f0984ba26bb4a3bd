package profile

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/apierr"
	"eventhub/internal/logging"
	"eventhub/internal/models"
)

type fakeAPI struct {
	profile  *models.Profile
	err      error
	calls    int
	password models.PasswordChange
	deleted  *models.Profile
}

func (f *fakeAPI) Profile(ctx context.Context) (*models.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Telegram != nil {
		p.Telegram = *upd.Telegram
	}
	f.profile = &p
	return &p, nil
}

func (f *fakeAPI) ChangePassword(ctx context.Context, req models.PasswordChange) error {
	f.calls++
	f.password = req
	return f.err
}

func (f *fakeAPI) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	p.AvatarURL = "/static/avatars/" + filename
	f.profile = &p
	return &p, nil
}

func (f *fakeAPI) DeleteAvatar(ctx context.Context) (*models.Profile, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeSession struct {
	fields []models.ProfileFields
}

func (f *fakeSession) SetProfileFields(fields models.ProfileFields) error {
	f.fields = append(f.fields, fields)
	return nil
}

func newService() (*Service, *fakeAPI, *fakeSession) {
	api := &fakeAPI{profile: &models.Profile{ID: "u1", Login: "иван", Name: "Иван", AvatarURL: "/static/avatars/old.png"}}
	sess := &fakeSession{}
	return NewService(NewStore(), api, sess, logging.Discard()), api, sess
}

func TestStore_Transitions(t *testing.T) {
	p := &models.Profile{ID: "u1", Name: "Иван"}

	tests := []struct {
		name  string
		steps func(s *Store)
		check func(t *testing.T, st State)
	}{
		{
			name:  "Begin включает загрузку и сбрасывает ошибку",
			steps: func(s *Store) { s.Fail(OpUpdate, "ошибка"); s.Begin(OpUpdate) },
			check: func(t *testing.T, st State) {
				assert.Equal(t, OpStatus{Loading: true}, st.Update)
			},
		},
		{
			name:  "Succeed сохраняет профиль",
			steps: func(s *Store) { s.Begin(OpFetch); s.Succeed(OpFetch, p) },
			check: func(t *testing.T, st State) {
				assert.Equal(t, OpStatus{}, st.Fetch)
				assert.Equal(t, p, st.Profile)
			},
		},
		{
			name:  "Неудачная загрузка убирает профиль",
			steps: func(s *Store) { s.Succeed(OpFetch, p); s.Begin(OpFetch); s.Fail(OpFetch, "нет сети") },
			check: func(t *testing.T, st State) {
				assert.Nil(t, st.Profile)
				assert.Equal(t, OpStatus{Error: "нет сети"}, st.Fetch)
			},
		},
		{
			name:  "Неудачное обновление оставляет профиль",
			steps: func(s *Store) { s.Succeed(OpFetch, p); s.Begin(OpUpdate); s.Fail(OpUpdate, "ошибка") },
			check: func(t *testing.T, st State) {
				assert.Equal(t, p, st.Profile)
				assert.Equal(t, "ошибка", st.Update.Error)
			},
		},
		{
			name:  "Операции независимы",
			steps: func(s *Store) { s.Begin(OpAvatar); s.Fail(OpPassword, "короткий") },
			check: func(t *testing.T, st State) {
				assert.True(t, st.Avatar.Loading)
				assert.Equal(t, "короткий", st.Password.Error)
				assert.False(t, st.Fetch.Loading)
			},
		},
		{
			name:  "Смена пароля выставляет одноразовый флаг",
			steps: func(s *Store) { s.Begin(OpPassword); s.Succeed(OpPassword, nil) },
			check: func(t *testing.T, st State) {
				assert.True(t, st.PasswordChanged)
			},
		},
		{
			name:  "Флаг смены пароля сбрасывается явно",
			steps: func(s *Store) { s.Succeed(OpPassword, nil); s.ClearPasswordChanged() },
			check: func(t *testing.T, st State) {
				assert.False(t, st.PasswordChanged)
			},
		},
		{
			name:  "Abort снимает только загрузку",
			steps: func(s *Store) { s.Succeed(OpFetch, p); s.Begin(OpFetch); s.Abort(OpFetch) },
			check: func(t *testing.T, st State) {
				assert.Equal(t, OpStatus{}, st.Fetch)
				assert.Equal(t, p, st.Profile)
			},
		},
		{
			name:  "Reset очищает все",
			steps: func(s *Store) { s.Succeed(OpPassword, p); s.Begin(OpAvatar); s.Reset() },
			check: func(t *testing.T, st State) {
				assert.Equal(t, State{}, st)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			tt.steps(s)
			tt.check(t, s.State())
		})
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	s.Begin(OpFetch)
	s.Succeed(OpFetch, &models.Profile{ID: "u1"})
	require.Len(t, got, 2)
	assert.True(t, got[0].Op(OpFetch).Loading)
	assert.Equal(t, "u1", got[1].Profile.ID)

	unsubscribe()
	s.Reset()
	assert.Len(t, got, 2)
}

func TestService_LoadIsLazy(t *testing.T) {
	svc, api, _ := newService()

	p, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Иван", p.Name)

	_, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)

	_, err = svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestService_FetchFailure(t *testing.T) {
	svc, api, _ := newService()
	_, err := svc.Fetch(context.Background())
	require.NoError(t, err)

	api.err = apierr.New("Сервер недоступен")
	_, err = svc.Fetch(context.Background())
	require.Error(t, err)

	st := svc.Store().State()
	assert.Nil(t, st.Profile)
	assert.Equal(t, "Сервер недоступен", st.Fetch.Error)
	assert.False(t, st.Fetch.Loading)
}

func TestService_UpdateSyncsSession(t *testing.T) {
	svc, _, sess := newService()

	tg := "@ivan"
	p, err := svc.Update(context.Background(), models.ProfileUpdate{Telegram: &tg})
	require.NoError(t, err)
	assert.Equal(t, "@ivan", p.Telegram)
	assert.Equal(t, "@ivan", svc.Store().State().Profile.Telegram)

	require.Len(t, sess.fields, 1)
	require.NotNil(t, sess.fields[0].Telegram)
	assert.Equal(t, "@ivan", *sess.fields[0].Telegram)
}

func TestService_UpdateFailureDoesNotSync(t *testing.T) {
	svc, api, sess := newService()
	api.err = apierr.New("Email уже занят")

	_, err := svc.Update(context.Background(), models.ProfileUpdate{})
	require.Error(t, err)
	assert.Equal(t, "Email уже занят", svc.Store().State().Update.Error)
	assert.Empty(t, sess.fields)
}

func TestService_BlankProfileDoesNotSync(t *testing.T) {
	svc, api, sess := newService()
	_, err := svc.Fetch(context.Background())
	require.NoError(t, err)

	api.profile = &models.Profile{}
	tg := "@ivan"
	_, err = svc.Update(context.Background(), models.ProfileUpdate{Telegram: &tg})
	require.Error(t, err)

	st := svc.Store().State()
	assert.Equal(t, "Не удалось обновить профиль", st.Update.Error)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Иван", st.Profile.Name)
	assert.Empty(t, sess.fields)
}

func TestService_Canceled(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		run  func(svc *Service, ctx context.Context) error
	}{
		{
			name: "Загрузка",
			op:   OpFetch,
			run: func(svc *Service, ctx context.Context) error {
				_, err := svc.Fetch(ctx)
				return err
			},
		},
		{
			name: "Обновление",
			op:   OpUpdate,
			run: func(svc *Service, ctx context.Context) error {
				_, err := svc.Update(ctx, models.ProfileUpdate{})
				return err
			},
		},
		{
			name: "Смена пароля",
			op:   OpPassword,
			run: func(svc *Service, ctx context.Context) error {
				return svc.ChangePassword(ctx, models.PasswordChange{OldPassword: "a", NewPassword: "bbbbbb"})
			},
		},
		{
			name: "Аватар",
			op:   OpAvatar,
			run: func(svc *Service, ctx context.Context) error {
				_, err := svc.UploadAvatar(ctx, "me.png", strings.NewReader("x"))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, sess := newService()
			svc.Store().Succeed(OpFetch, api.profile)
			api.err = apierr.ErrCanceled

			var transitions []State
			svc.Store().Subscribe(func(st State) { transitions = append(transitions, st) })

			err := tt.run(svc, context.Background())
			assert.ErrorIs(t, err, apierr.ErrCanceled)

			st := svc.Store().State()
			assert.Equal(t, OpStatus{}, st.Op(tt.op))
			assert.NotNil(t, st.Profile)
			assert.False(t, st.PasswordChanged)
			assert.Empty(t, sess.fields)
			// только Begin и Abort
			assert.Len(t, transitions, 2)
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, api, _ := newService()

	require.NoError(t, svc.ChangePassword(context.Background(), models.PasswordChange{OldPassword: "secret1", NewPassword: "secret2"}))
	assert.Equal(t, "secret2", api.password.NewPassword)
	assert.True(t, svc.Store().State().PasswordChanged)

	svc.Store().ClearPasswordChanged()
	assert.False(t, svc.Store().State().PasswordChanged)
}

func TestService_Avatar(t *testing.T) {
	svc, _, sess := newService()
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	p, err := svc.UploadAvatar(context.Background(), "me.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/static/avatars/me.png", p.AvatarURL)

	// сервер не вернул профиль
	p, err = svc.DeleteAvatar(context.Background())
	require.NoError(t, err)
	assert.Empty(t, p.AvatarURL)
	assert.Equal(t, "Иван", p.Name)
	assert.Empty(t, svc.Store().State().Profile.AvatarURL)

	require.Len(t, sess.fields, 2)
	assert.Equal(t, "", *sess.fields[1].AvatarURL)
}
