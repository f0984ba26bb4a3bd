package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Роли пользователей, которые выдаёт сервер
const (
	RoleMember        = "member"
	RoleAdministrator = "administrator"
)

// MinPasswordLength минимальная длина нового пароля
const MinPasswordLength = 6

// SessionUser представляет пользователя текущей сессии.
// Токен хранится отдельно от записи пользователя.
type SessionUser struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Telegram  string `json:"telegram,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// FullName возвращает имя и фамилию через пробел
func (u SessionUser) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// LoginRequest представляет запрос на вход в систему
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Validate проверяет запрос до отправки на сервер
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Login) == "" {
		return errors.New("введите логин")
	}
	if r.Password == "" {
		return errors.New("введите пароль")
	}
	return nil
}

// AuthResponse представляет ответ после успешной аутентификации
type AuthResponse struct {
	User  *SessionUser `json:"user"`
	Token string       `json:"token"`
}

// Profile представляет изменяемые персональные данные пользователя
type Profile struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Telegram  string `json:"telegram,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Fields возвращает поля профиля, которые дублируются в сессии
func (p Profile) Fields() ProfileFields {
	return ProfileFields{
		Name:      &p.Name,
		Surname:   &p.Surname,
		Email:     &p.Email,
		Telegram:  &p.Telegram,
		AvatarURL: &p.AvatarURL,
	}
}

// ProfileFields частичное обновление полей пользователя сессии.
// nil означает "не менять".
type ProfileFields struct {
	Name      *string
	Surname   *string
	Email     *string
	Telegram  *string
	AvatarURL *string
}

// Apply накладывает непустые поля на пользователя
func (f ProfileFields) Apply(u *SessionUser) {
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.Surname != nil {
		u.Surname = *f.Surname
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Telegram != nil {
		u.Telegram = *f.Telegram
	}
	if f.AvatarURL != nil {
		u.AvatarURL = *f.AvatarURL
	}
}

// ProfileUpdate представляет PATCH-запрос профиля
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Surname  *string `json:"surname,omitempty"`
	Email    *string `json:"email,omitempty"`
	Telegram *string `json:"telegram,omitempty"`
}

// Validate проверяет обновление профиля
func (u ProfileUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errors.New("имя не может быть пустым")
	}
	if u.Surname != nil && strings.TrimSpace(*u.Surname) == "" {
		return errors.New("фамилия не может быть пустой")
	}
	if u.Email != nil && !strings.Contains(*u.Email, "@") {
		return errors.New("некорректный email")
	}
	return nil
}

// PasswordChange представляет запрос смены пароля
type PasswordChange struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Validate проверяет запрос смены пароля
func (p PasswordChange) Validate() error {
	if p.OldPassword == "" {
		return errors.New("введите текущий пароль")
	}
	if utf8.RuneCountInString(p.NewPassword) < MinPasswordLength {
		return errors.New("новый пароль слишком короткий")
	}
	if p.NewPassword == p.OldPassword {
		return errors.New("новый пароль совпадает с текущим")
	}
	return nil
}

// NotificationPreferences настройки уведомлений пользователя
type NotificationPreferences struct {
	Email           bool `json:"email"`
	Telegram        bool `json:"telegram"`
	RemindBeforeMin int  `json:"remindBeforeMinutes"`
}

// UserSummary краткое представление пользователя в списках
type UserSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Login   string `json:"login"`
}

// UserSearch запрос поиска пользователей
type UserSearch struct {
	Query string `json:"query"`
}
