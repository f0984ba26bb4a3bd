// Package api доменные модули REST API: авторизация, пользователи,
// мероприятия, команды и заявки на модерацию.
//
// Каждая функция делает ровно один HTTP-запрос через httpclient и при
// ошибке возвращает *apierr.Error с текстом для пользователя
// (или apierr.ErrCanceled, если запрос отменен).
package api

import (
	"context"
	"io"
	"net/url"

	"eventhub/internal/apierr"
	"eventhub/internal/httpclient"
)

// Doer исполняет HTTP-запросы. Реализуется *httpclient.Client.
type Doer interface {
	Do(ctx context.Context, method, path string, body any) (*httpclient.Response, error)
	Upload(ctx context.Context, method, path string, body io.Reader, contentType string) (*httpclient.Response, error)
}

// API набор доменных модулей поверх одного HTTP-клиента
type API struct {
	Auth         *Auth
	Users        *Users
	Events       *Events
	Teams        *Teams
	Applications *Applications
}

// New создает все доменные модули
func New(c Doer) *API {
	users := &Users{c: c}
	events := &Events{c: c}
	return &API{
		Auth:         &Auth{c: c},
		Users:        users,
		Events:       events,
		Teams:        &Teams{c: c},
		Applications: &Applications{events: events, users: users},
	}
}

// call выполняет запрос и декодирует тело в out, если out != nil и тело не пустое.
// Пустой ответ оставляет out без изменений.
func call(ctx context.Context, c Doer, method, path string, body, out any, fallback string) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return apierr.Wrap(err, fallback)
	}
	if out == nil || resp.Empty() {
		return nil
	}
	if err := resp.JSON(out); err != nil {
		return apierr.New(fallback)
	}
	return nil
}

// fetch выполняет запрос, ответ на который обязан содержать сущность.
// Пустое тело, 204 и "null" считаются ошибкой с сообщением fallback.
func fetch[T any](ctx context.Context, c Doer, method, path string, body any, fallback string) (*T, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return nil, apierr.Wrap(err, fallback)
	}
	if resp.Empty() {
		return nil, apierr.New(fallback)
	}
	var out *T
	if err := resp.JSON(&out); err != nil || out == nil {
		return nil, apierr.New(fallback)
	}
	return out, nil
}

// callList выполняет запрос, возвращающий список. 204 и пустое тело - пустой список.
func callList[T any](ctx context.Context, c Doer, method, path string, body any, fallback string) ([]T, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return nil, apierr.Wrap(err, fallback)
	}
	items := []T{}
	if resp.Empty() {
		return items, nil
	}
	if err := resp.JSON(&items); err != nil {
		return nil, apierr.New(fallback)
	}
	if items == nil {
		// тело "null"
		items = []T{}
	}
	return items, nil
}

func validate(v interface{ Validate() error }) error {
	if err := v.Validate(); err != nil {
		return apierr.New(err.Error())
	}
	return nil
}

func seg(s string) string {
	return url.PathEscape(s)
}
