// Package notify уведомления, собранные на клиенте из приглашений.
//
// Сервер не присылает уведомления, поэтому лента строится из ответа
// /Event/invited: приглашение на каждое мероприятие и напоминание
// о скором начале. Повторная синхронизация не дублирует записи.
package notify

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/models"
)

// Kind вид уведомления
type Kind string

const (
	KindInvitation Kind = "invitation"
	KindReminder   Kind = "reminder"
)

// Notification запись ленты
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	EventID   string    `json:"eventId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// Feed лента уведомлений одного пользователя
type Feed struct {
	mu           sync.Mutex
	items        []*Notification
	seen         map[string]bool // kind + eventID
	remindBefore time.Duration
	now          func() time.Time
}

// NewFeed создает ленту. remindBefore <= 0 отключает напоминания.
func NewFeed(remindBefore time.Duration) *Feed {
	return &Feed{
		seen:         make(map[string]bool),
		remindBefore: remindBefore,
		now:          time.Now,
	}
}

// SetClock подменяет источник времени
func (f *Feed) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Sync добавляет уведомления по приглашениям и возвращает новые
func (f *Feed) Sync(invited []models.Event) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var added []Notification
	add := func(kind Kind, ev models.Event, text string) {
		key := string(kind) + ":" + ev.ID
		if f.seen[key] {
			return
		}
		f.seen[key] = true
		n := &Notification{
			ID:        uuid.NewString(),
			Kind:      kind,
			EventID:   ev.ID,
			Text:      text,
			CreatedAt: now,
		}
		f.items = append(f.items, n)
		added = append(added, *n)
	}

	for _, ev := range invited {
		if ev.Status == models.StatusRejected || ev.Status == models.StatusCancelled {
			continue
		}
		if ev.TimeEnd.Before(now) {
			continue
		}
		add(KindInvitation, ev, fmt.Sprintf("Вас пригласили на мероприятие «%s»", ev.Name))

		if f.remindBefore > 0 && ev.TimeStart.After(now) && ev.TimeStart.Sub(now) <= f.remindBefore {
			minutes := int(ev.TimeStart.Sub(now).Round(time.Minute) / time.Minute)
			add(KindReminder, ev, fmt.Sprintf("«%s» начнется через %d мин.", ev.Name, minutes))
		}
	}
	return added
}

// List возвращает уведомления от новых к старым
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0; i-- {
		out = append(out, *f.items[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Unread возвращает число непрочитанных
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkRead отмечает уведомление прочитанным. false, если id не найден.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range f.items {
		if item.ID == id {
			item.Read = true
			return true
		}
	}
	return false
}

// MarkAllRead отмечает все уведомления прочитанными
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range f.items {
		item.Read = true
	}
}

// Clear очищает ленту (при выходе из системы)
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = nil
	f.seen = make(map[string]bool)
}
