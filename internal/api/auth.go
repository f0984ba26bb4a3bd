package api

import (
	"context"
	"net/http"

	"eventhub/internal/apierr"
	"eventhub/internal/models"
)

// Auth модуль авторизации
type Auth struct {
	c Doer
}

// Login выполняет вход и возвращает пользователя и токен
func (a *Auth) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	resp, err := fetch[models.AuthResponse](ctx, a.c, http.MethodPost, "/auth/login", req, "Не удалось войти")
	if err != nil {
		return nil, err
	}
	if resp.User == nil || resp.Token == "" {
		return nil, apierr.New("Сервер вернул неполный ответ при входе")
	}
	return resp, nil
}
