// Package eventlist раскладывает ответ поиска мероприятий по вкладкам
// "прошедшие", "предстоящие" и "на модерации".
//
// Разбиение выполняется на клиенте по одному ответу /Event/search.
// Если сервер начнет фильтровать сам, заменить нужно только Partition.
package eventlist

import (
	"sort"
	"time"

	"eventhub/internal/models"
)

// Lists мероприятия по вкладкам
type Lists struct {
	Past       []models.Event `json:"past"`
	Upcoming   []models.Event `json:"upcoming"`
	Moderation []models.Event `json:"moderation"`
}

// Partition раскладывает мероприятия относительно момента now.
// Отклоненные и отмененные не попадают ни в одну вкладку.
// Идущее сейчас мероприятие считается предстоящим.
// Прошедшие отсортированы от новых к старым, остальные по времени начала.
func Partition(events []models.Event, now time.Time) Lists {
	lists := Lists{
		Past:       []models.Event{},
		Upcoming:   []models.Event{},
		Moderation: []models.Event{},
	}

	for _, ev := range events {
		switch ev.Status {
		case models.StatusSuggested:
			lists.Moderation = append(lists.Moderation, ev)
		case models.StatusRejected, models.StatusCancelled:
		default:
			if ev.TimeEnd.Before(now) {
				lists.Past = append(lists.Past, ev)
			} else {
				lists.Upcoming = append(lists.Upcoming, ev)
			}
		}
	}

	sort.SliceStable(lists.Past, func(i, j int) bool {
		return lists.Past[i].TimeStart.After(lists.Past[j].TimeStart)
	})
	sort.SliceStable(lists.Upcoming, func(i, j int) bool {
		return lists.Upcoming[i].TimeStart.Before(lists.Upcoming[j].TimeStart)
	})
	sort.SliceStable(lists.Moderation, func(i, j int) bool {
		return lists.Moderation[i].TimeStart.Before(lists.Moderation[j].TimeStart)
	})
	return lists
}

// Feedback прошедшие мероприятия, в которых участвовал пользователь
func Feedback(events []models.Event, userID string, now time.Time) []models.Event {
	out := []models.Event{}
	for _, ev := range Partition(events, now).Past {
		for _, id := range ev.ParticipantIDs {
			if id == userID {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
