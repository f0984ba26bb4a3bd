package api

import (
	"context"
	"net/http"
	"sync"

	"eventhub/internal/models"
)

// UnknownCreator подпись карточки, когда создателя загрузить не удалось
const UnknownCreator = "создатель неизвестен"

// Applications модуль модерации предложенных мероприятий
type Applications struct {
	events *Events
	users  *Users
}

// Card карточка заявки. Creator == nil, если создателя найти не удалось.
type Card struct {
	Event        models.Event        `json:"event"`
	Creator      *models.UserSummary `json:"creator,omitempty"`
	CreatorLabel string              `json:"creatorLabel"`
}

// Moderation возвращает мероприятия, ожидающие модерации.
// Ответ 204 означает пустой список.
func (a *Applications) Moderation(ctx context.Context) ([]models.Event, error) {
	return callList[models.Event](ctx, a.events.c, http.MethodPost, "/Event/search",
		models.EventSearch{Status: models.StatusSuggested}, "Не удалось загрузить заявки")
}

// Confirm подтверждает заявку
func (a *Applications) Confirm(ctx context.Context, id string) error {
	return a.events.Confirm(ctx, id)
}

// Reject отклоняет заявку
func (a *Applications) Reject(ctx context.Context, id string) error {
	return a.events.Reject(ctx, id)
}

// Cards строит карточки заявок, подгружая создателей параллельно.
// Ошибка загрузки создателя не ломает список: карточка получает подпись UnknownCreator.
func (a *Applications) Cards(ctx context.Context, events []models.Event) []Card {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.CreatedByID != "" && !seen[ev.CreatedByID] {
			seen[ev.CreatedByID] = true
			ids = append(ids, ev.CreatedByID)
		}
	}

	creators := make(map[string]*models.UserSummary, len(ids))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			user, err := a.users.Get(ctx, id)
			if err != nil || user == nil || (user.ID == "" && user.Login == "" && user.Name == "") {
				return
			}
			mu.Lock()
			creators[id] = user
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	cards := make([]Card, 0, len(events))
	for _, ev := range events {
		card := Card{Event: ev, CreatorLabel: UnknownCreator}
		if user := creators[ev.CreatedByID]; user != nil {
			card.Creator = user
			name := models.SessionUser{Name: user.Name, Surname: user.Surname}.FullName()
			if name == "" {
				name = user.Login
			}
			card.CreatorLabel = name
		}
		cards = append(cards, card)
	}
	return cards
}
