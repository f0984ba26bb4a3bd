package models

import (
	"errors"
	"strings"
)

// Team представляет команду с денормализованным списком участников
type Team struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OwnerID     string        `json:"ownerId"`
	Users       []UserSummary `json:"users"`
}

// HasMember проверяет, состоит ли пользователь в команде
func (t Team) HasMember(userID string) bool {
	for _, u := range t.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// TeamSearch запрос поиска команд
type TeamSearch struct {
	Name string `json:"name,omitempty"`
}

// TeamCreate запрос создания команды
type TeamCreate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	UserIDs     []string `json:"userIds,omitempty"`
}

// Validate проверяет запрос создания команды
func (c TeamCreate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("укажите название команды")
	}
	return nil
}

// TeamMember тело запроса добавления участника
type TeamMember struct {
	UserID string `json:"userId"`
}
