package api

import (
	"context"
	"net/http"

	"eventhub/internal/apierr"
	"eventhub/internal/models"
)

// Teams модуль команд
type Teams struct {
	c Doer
}

// Get возвращает команду по идентификатору
func (t *Teams) Get(ctx context.Context, id string) (*models.Team, error) {
	return fetch[models.Team](ctx, t.c, http.MethodGet, "/teams/"+seg(id), nil, "Не удалось загрузить команду")
}

// Search ищет команды по названию
func (t *Teams) Search(ctx context.Context, filter models.TeamSearch) ([]models.Team, error) {
	return callList[models.Team](ctx, t.c, http.MethodPost, "/teams/search", filter, "Не удалось найти команды")
}

// Create создает команду
func (t *Teams) Create(ctx context.Context, req models.TeamCreate) (*models.Team, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return fetch[models.Team](ctx, t.c, http.MethodPost, "/teams", req, "Не удалось создать команду")
}

// Delete удаляет команду
func (t *Teams) Delete(ctx context.Context, id string) error {
	return call(ctx, t.c, http.MethodDelete, "/teams/"+seg(id), nil, nil, "Не удалось удалить команду")
}

// AddMember добавляет пользователя в команду
func (t *Teams) AddMember(ctx context.Context, teamID, userID string) error {
	if userID == "" {
		return apierr.New("Выберите пользователя")
	}
	return call(ctx, t.c, http.MethodPost, "/teams/"+seg(teamID)+"/members", models.TeamMember{UserID: userID}, nil, "Не удалось добавить участника")
}

// RemoveMember исключает пользователя из команды
func (t *Teams) RemoveMember(ctx context.Context, teamID, userID string) error {
	return call(ctx, t.c, http.MethodDelete, "/teams/"+seg(teamID)+"/members/"+seg(userID), nil, nil, "Не удалось исключить участника")
}
