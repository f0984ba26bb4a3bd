package models

import (
	"errors"
	"strings"
	"time"
)

// EventType тип мероприятия
type EventType string

const (
	EventGeneral  EventType = "general"
	EventPersonal EventType = "personal"
	EventGroup    EventType = "group"
)

// EventStatus статус мероприятия в модерации
type EventStatus string

const (
	StatusSuggested EventStatus = "suggested"
	StatusConfirmed EventStatus = "confirmed"
	StatusRejected  EventStatus = "rejected"
	StatusCancelled EventStatus = "cancelled"
)

// InvitationStatus ответ участника на приглашение
type InvitationStatus string

const (
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationMaybe    InvitationStatus = "maybe"
)

// Valid сообщает, известен ли статус серверу
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationAccepted, InvitationDeclined, InvitationMaybe:
		return true
	}
	return false
}

// Event представляет мероприятие. Данными владеет сервер.
type Event struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	TimeStart      time.Time   `json:"timeStart"`
	TimeEnd        time.Time   `json:"timeEnd"`
	Location       string      `json:"location,omitempty"`
	Type           EventType   `json:"type"`
	Status         EventStatus `json:"status"`
	CreatedByID    string      `json:"createdById"`
	Keywords       []string    `json:"keywords"`
	ParticipantIDs []string    `json:"participantIds"`
	TeamIDs        []string    `json:"teamIds"`
}

// EventSearch фильтр поиска мероприятий. Пустые поля не отправляются.
type EventSearch struct {
	Name     string      `json:"name,omitempty"`
	Status   EventStatus `json:"status,omitempty"`
	Type     EventType   `json:"type,omitempty"`
	From     *time.Time  `json:"from,omitempty"`
	To       *time.Time  `json:"to,omitempty"`
	Keywords []string    `json:"keywords,omitempty"`
}

// EventSuggestion предложение нового мероприятия на модерацию
type EventSuggestion struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	TimeStart      time.Time `json:"timeStart"`
	TimeEnd        time.Time `json:"timeEnd"`
	Location       string    `json:"location,omitempty"`
	Type           EventType `json:"type"`
	Keywords       []string  `json:"keywords,omitempty"`
	ParticipantIDs []string  `json:"participantIds,omitempty"`
	TeamIDs        []string  `json:"teamIds,omitempty"`
}

// Validate проверяет предложение до отправки
func (s EventSuggestion) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("укажите название мероприятия")
	}
	if s.TimeStart.IsZero() || s.TimeEnd.IsZero() {
		return errors.New("укажите время начала и окончания")
	}
	if !s.TimeEnd.After(s.TimeStart) {
		return errors.New("окончание должно быть позже начала")
	}
	switch s.Type {
	case EventGeneral, EventPersonal, EventGroup:
	default:
		return errors.New("неизвестный тип мероприятия")
	}
	return nil
}

// EventUpdate частичное обновление мероприятия
type EventUpdate struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	TimeStart   *time.Time `json:"timeStart,omitempty"`
	TimeEnd     *time.Time `json:"timeEnd,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
}

// Validate проверяет обновление мероприятия
func (u EventUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errors.New("название не может быть пустым")
	}
	if u.TimeStart != nil && u.TimeEnd != nil && !u.TimeEnd.After(*u.TimeStart) {
		return errors.New("окончание должно быть позже начала")
	}
	return nil
}
