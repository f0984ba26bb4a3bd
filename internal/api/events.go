package api

import (
	"context"
	"net/http"
	"net/url"

	"eventhub/internal/apierr"
	"eventhub/internal/models"
)

// Events модуль мероприятий
type Events struct {
	c Doer
}

// Get возвращает мероприятие по идентификатору
func (e *Events) Get(ctx context.Context, id string) (*models.Event, error) {
	return fetch[models.Event](ctx, e.c, http.MethodGet, "/Event/"+seg(id), nil, "Не удалось загрузить мероприятие")
}

// Search ищет мероприятия. Пустой ответ - пустой список, а не ошибка.
func (e *Events) Search(ctx context.Context, filter models.EventSearch) ([]models.Event, error) {
	return callList[models.Event](ctx, e.c, http.MethodPost, "/Event/search", filter, "Не удалось найти мероприятия")
}

// Invited возвращает мероприятия, куда приглашен текущий пользователь
func (e *Events) Invited(ctx context.Context) ([]models.Event, error) {
	return callList[models.Event](ctx, e.c, http.MethodGet, "/Event/invited", nil, "Не удалось загрузить приглашения")
}

// Suggest отправляет мероприятие на модерацию
func (e *Events) Suggest(ctx context.Context, s models.EventSuggestion) (*models.Event, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return fetch[models.Event](ctx, e.c, http.MethodPost, "/Event/suggest", s, "Не удалось предложить мероприятие")
}

// Confirm подтверждает предложенное мероприятие
func (e *Events) Confirm(ctx context.Context, id string) error {
	return call(ctx, e.c, http.MethodPost, "/Event/"+seg(id)+"/confirm_event", nil, nil, "Не удалось подтвердить мероприятие")
}

// Reject отклоняет предложенное мероприятие
func (e *Events) Reject(ctx context.Context, id string) error {
	return call(ctx, e.c, http.MethodPost, "/Event/"+seg(id)+"/reject_event", nil, nil, "Не удалось отклонить мероприятие")
}

// Respond отвечает на приглашение
func (e *Events) Respond(ctx context.Context, id string, status models.InvitationStatus) error {
	if !status.Valid() {
		return apierr.New("Неизвестный ответ на приглашение")
	}
	q := url.Values{}
	q.Set("status", string(status))
	path := "/Event/" + seg(id) + "/respond_invitation?" + q.Encode()
	return call(ctx, e.c, http.MethodPost, path, nil, nil, "Не удалось ответить на приглашение")
}

// Update частично обновляет мероприятие
func (e *Events) Update(ctx context.Context, id string, upd models.EventUpdate) (*models.Event, error) {
	if err := validate(upd); err != nil {
		return nil, err
	}
	return fetch[models.Event](ctx, e.c, http.MethodPatch, "/Event/"+seg(id), upd, "Не удалось обновить мероприятие")
}

// Delete удаляет мероприятие
func (e *Events) Delete(ctx context.Context, id string) error {
	return call(ctx, e.c, http.MethodDelete, "/Event/"+seg(id), nil, nil, "Не удалось удалить мероприятие")
}
