// Package session хранит текущего пользователя и его токен.
//
// Хранилище сессии единственное, кто пишет в долговременное хранилище
// клиента. Память и диск меняются в одной операции: если запись на диск
// не удалась, состояние в памяти остается прежним.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"eventhub/internal/apierr"
	"eventhub/internal/auth"
	"eventhub/internal/logging"
	"eventhub/internal/models"
	"eventhub/internal/storage"
)

// LoginFailedMessage сообщение по умолчанию для неудачного входа
const LoginFailedMessage = "Не удалось войти"

// State снимок состояния сессии
type State struct {
	User    *models.SessionUser
	Token   string
	Loading bool
	Error   string
}

// Authenticated сообщает, что есть и пользователь, и токен
func (s State) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

// Role возвращает роль пользователя или пустую строку
func (s State) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Authenticator выполняет вход на сервере. Реализуется *api.Auth.
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
}

// Option настраивает хранилище сессии
type Option func(*Store)

// WithClock подменяет источник времени для проверки срока токена
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store хранилище сессии
type Store struct {
	mu      sync.RWMutex
	state   State
	storage storage.Store
	auth    Authenticator
	log     logrus.FieldLogger
	now     func() time.Time

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// New создает хранилище и восстанавливает сессию из долговременного хранилища
func New(st storage.Store, authenticator Authenticator, logger logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		storage: st,
		auth:    authenticator,
		log:     logging.Component(logger, "session"),
		now:     time.Now,
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore()
	return s
}

// restore читает user и token. Любая несогласованность стирает оба ключа.
func (s *Store) restore() {
	user, token, err := s.read()
	if err != nil {
		s.log.WithError(err).Warn("сохраненная сессия повреждена, выполняется сброс")
		if err := s.storage.RemoveItems(storage.KeyUser, storage.KeyToken); err != nil {
			s.log.WithError(err).Error("не удалось очистить хранилище сессии")
		}
		return
	}
	if user == nil {
		return
	}
	s.state = State{User: user, Token: token}
	s.log.WithField("login", user.Login).Debug("сессия восстановлена")
}

func (s *Store) read() (*models.SessionUser, string, error) {
	rawUser, hasUser, err := s.storage.Get(storage.KeyUser)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read user: %w", err)
	}
	token, hasToken, err := s.storage.Get(storage.KeyToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read token: %w", err)
	}

	if !hasUser && !hasToken {
		return nil, "", nil
	}
	if !hasUser || !hasToken || token == "" {
		return nil, "", fmt.Errorf("user and token are stored inconsistently")
	}

	var user *models.SessionUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, "", fmt.Errorf("failed to decode user: %w", err)
	}
	if user == nil {
		return nil, "", fmt.Errorf("stored user is null")
	}
	if err := auth.CheckExpiry(token, s.now()); err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// State возвращает копию текущего состояния
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Login выполняет вход. Отмененный запрос не меняет сессию и не оставляет ошибку.
func (s *Store) Login(ctx context.Context, req models.LoginRequest) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	resp, err := s.auth.Login(ctx, req)
	if apierr.IsCanceled(err) {
		s.update(func(st *State) { st.Loading = false })
		return apierr.ErrCanceled
	}
	if err != nil {
		msg := apierr.Message(err, LoginFailedMessage)
		s.log.WithField("login", req.Login).Info("вход не выполнен: " + msg)
		s.update(func(st *State) {
			st.Loading = false
			st.Error = msg
		})
		return err
	}

	// запись и замена состояния под одной блокировкой: память и хранилище совпадают
	user := *resp.User
	s.mu.Lock()
	if err := s.persist(&user, resp.Token); err != nil {
		s.state.Loading = false
		s.state.Error = apierr.Message(err, LoginFailedMessage)
		st := s.snapshot()
		s.mu.Unlock()
		s.notify(st)
		return err
	}
	s.state = State{User: &user, Token: resp.Token}
	st := s.snapshot()
	s.mu.Unlock()

	s.notify(st)
	s.log.WithField("login", user.Login).Info("вход выполнен")
	return nil
}

// Logout завершает сессию без обращения к серверу
func (s *Store) Logout() error {
	s.mu.Lock()
	if err := s.storage.RemoveItems(storage.KeyUser, storage.KeyToken); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.state = State{}
	st := s.snapshot()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// SetProfileFields обновляет поля профиля в пользователе сессии.
// Без активной сессии ничего не делает.
func (s *Store) SetProfileFields(fields models.ProfileFields) error {
	s.mu.Lock()
	if !s.state.Authenticated() {
		s.mu.Unlock()
		return nil
	}

	user := *s.state.User
	fields.Apply(&user)
	if err := s.persist(&user, s.state.Token); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state.User = &user
	st := s.snapshot()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// persist записывает пользователя и токен одной операцией
func (s *Store) persist(user *models.SessionUser, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.storage.SetItems(map[string]string{
		storage.KeyUser:  string(data),
		storage.KeyToken: token,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.snapshot()
	s.mu.Unlock()

	s.notify(st)
}

// Subscribe подписывает fn на изменения состояния. Возвращает функцию отписки.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify вызывается вне блокировки состояния
func (s *Store) notify(st State) {
	s.subMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
