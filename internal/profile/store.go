// Package profile хранит профиль текущего пользователя и статусы
// операций над ним: загрузки, обновления, смены пароля и аватара.
package profile

import (
	"fmt"
	"sync"

	"eventhub/internal/models"
)

// Op асинхронная операция над профилем
type Op int

const (
	OpFetch Op = iota
	OpUpdate
	OpPassword
	OpAvatar
)

var opNames = [...]string{"fetch", "update", "password", "avatar"}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opNames[op]
}

// OpStatus состояние одной операции
type OpStatus struct {
	Loading bool
	Error   string
}

// State снимок хранилища профиля
type State struct {
	Profile         *models.Profile
	Fetch           OpStatus
	Update          OpStatus
	Password        OpStatus
	Avatar          OpStatus
	PasswordChanged bool
}

// Op возвращает статус операции
func (s State) Op(op Op) OpStatus {
	switch op {
	case OpFetch:
		return s.Fetch
	case OpUpdate:
		return s.Update
	case OpPassword:
		return s.Password
	case OpAvatar:
		return s.Avatar
	}
	return OpStatus{}
}

func (s *State) status(op Op) *OpStatus {
	switch op {
	case OpFetch:
		return &s.Fetch
	case OpUpdate:
		return &s.Update
	case OpPassword:
		return &s.Password
	case OpAvatar:
		return &s.Avatar
	}
	panic(fmt.Sprintf("profile: unknown %s", op))
}

// Store хранилище профиля. Переходы синхронные, подписчики
// уведомляются вне блокировки.
type Store struct {
	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// State возвращает копию состояния
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := s.state
	if st.Profile != nil {
		p := *st.Profile
		st.Profile = &p
	}
	return st
}

// Begin включает загрузку и сбрасывает прошлую ошибку операции
func (s *Store) Begin(op Op) {
	s.apply(func(st *State) {
		*st.status(op) = OpStatus{Loading: true}
		if op == OpPassword {
			st.PasswordChanged = false
		}
	})
}

// Succeed завершает операцию. p == nil оставляет профиль без изменений.
func (s *Store) Succeed(op Op, p *models.Profile) {
	s.apply(func(st *State) {
		*st.status(op) = OpStatus{}
		if p != nil {
			cp := *p
			st.Profile = &cp
		}
		if op == OpPassword {
			st.PasswordChanged = true
		}
	})
}

// Fail завершает операцию с ошибкой. Неудачная загрузка убирает профиль.
func (s *Store) Fail(op Op, message string) {
	s.apply(func(st *State) {
		*st.status(op) = OpStatus{Error: message}
		if op == OpFetch {
			st.Profile = nil
		}
	})
}

// Abort снимает флаг загрузки после отмены, не трогая остальное
func (s *Store) Abort(op Op) {
	s.apply(func(st *State) {
		st.status(op).Loading = false
	})
}

// ClearPasswordChanged сбрасывает одноразовый флаг успешной смены пароля
func (s *Store) ClearPasswordChanged() {
	s.apply(func(st *State) {
		st.PasswordChanged = false
	})
}

// Reset очищает хранилище (например, после выхода)
func (s *Store) Reset() {
	s.apply(func(st *State) {
		*st = State{}
	})
}

func (s *Store) apply(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.snapshot()
	s.mu.Unlock()

	s.subMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

// Subscribe подписывает fn на изменения. Возвращает функцию отписки.
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
