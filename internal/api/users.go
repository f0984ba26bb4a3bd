package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"eventhub/internal/apierr"
	"eventhub/internal/models"
)

// Users модуль пользователей и профиля
type Users struct {
	c Doer
}

// Get возвращает пользователя по идентификатору
func (u *Users) Get(ctx context.Context, id string) (*models.UserSummary, error) {
	return fetch[models.UserSummary](ctx, u.c, http.MethodGet, "/User/"+seg(id), nil, "Не удалось загрузить пользователя")
}

// GetByLogin возвращает пользователя по логину
func (u *Users) GetByLogin(ctx context.Context, login string) (*models.UserSummary, error) {
	return fetch[models.UserSummary](ctx, u.c, http.MethodGet, "/User/login/"+seg(login), nil, "Не удалось загрузить пользователя")
}

// Profile возвращает профиль текущего пользователя
func (u *Users) Profile(ctx context.Context) (*models.Profile, error) {
	return fetch[models.Profile](ctx, u.c, http.MethodGet, "/User/me/profile", nil, "Не удалось загрузить профиль")
}

// UpdateProfile частично обновляет профиль
func (u *Users) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	if err := validate(upd); err != nil {
		return nil, err
	}
	return fetch[models.Profile](ctx, u.c, http.MethodPatch, "/User/me/profile", upd, "Не удалось обновить профиль")
}

// ChangePassword меняет пароль текущего пользователя
func (u *Users) ChangePassword(ctx context.Context, req models.PasswordChange) error {
	if err := validate(req); err != nil {
		return err
	}
	return call(ctx, u.c, http.MethodPatch, "/User/me/password", req, nil, "Не удалось сменить пароль")
}

// UploadAvatar загружает аватар. filename нужен серверу для определения типа.
func (u *Users) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.Profile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, apierr.New("Не удалось подготовить файл")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apierr.New(fmt.Sprintf("Не удалось прочитать файл %s", filepath.Base(filename)))
	}
	if err := mw.Close(); err != nil {
		return nil, apierr.New("Не удалось подготовить файл")
	}

	resp, err := u.c.Upload(ctx, http.MethodPost, "/User/me/avatar", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, apierr.Wrap(err, "Не удалось загрузить аватар")
	}
	var p models.Profile
	if resp.Empty() {
		return nil, nil
	}
	if err := resp.JSON(&p); err != nil {
		return nil, apierr.New("Не удалось загрузить аватар")
	}
	return &p, nil
}

// DeleteAvatar удаляет аватар. Если сервер не вернул профиль, результат nil.
func (u *Users) DeleteAvatar(ctx context.Context) (*models.Profile, error) {
	var p *models.Profile
	if err := call(ctx, u.c, http.MethodDelete, "/User/me/avatar", nil, &p, "Не удалось удалить аватар"); err != nil {
		return nil, err
	}
	return p, nil
}

// Preferences возвращает настройки уведомлений
func (u *Users) Preferences(ctx context.Context) (*models.NotificationPreferences, error) {
	return fetch[models.NotificationPreferences](ctx, u.c, http.MethodGet, "/User/me/notification_preferences", nil, "Не удалось загрузить настройки уведомлений")
}

// UpdatePreferences сохраняет настройки уведомлений
func (u *Users) UpdatePreferences(ctx context.Context, prefs models.NotificationPreferences) (*models.NotificationPreferences, error) {
	out := prefs
	if err := call(ctx, u.c, http.MethodPatch, "/User/me/notification_preferences", prefs, &out, "Не удалось сохранить настройки уведомлений"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search ищет пользователей по строке
func (u *Users) Search(ctx context.Context, query string) ([]models.UserSummary, error) {
	return callList[models.UserSummary](ctx, u.c, http.MethodPost, "/User/search", models.UserSearch{Query: query}, "Не удалось найти пользователей")
}
