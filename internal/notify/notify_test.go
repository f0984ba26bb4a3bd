package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/models"
)

func TestFeed_Sync(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	events := []models.Event{
		{ID: "soon", Name: "Планерка", Status: models.StatusConfirmed, TimeStart: now.Add(30 * time.Minute), TimeEnd: now.Add(time.Hour)},
		{ID: "later", Name: "Хакатон", Status: models.StatusConfirmed, TimeStart: now.Add(72 * time.Hour), TimeEnd: now.Add(80 * time.Hour)},
		{ID: "over", Name: "Ретро", Status: models.StatusConfirmed, TimeStart: now.Add(-3 * time.Hour), TimeEnd: now.Add(-2 * time.Hour)},
		{ID: "cancelled", Name: "Отменено", Status: models.StatusCancelled, TimeStart: now.Add(time.Hour), TimeEnd: now.Add(2 * time.Hour)},
	}

	tests := []struct {
		name         string
		remindBefore time.Duration
		wantKinds    map[string][]Kind
	}{
		{
			name:         "С напоминаниями",
			remindBefore: time.Hour,
			wantKinds: map[string][]Kind{
				"soon":  {KindInvitation, KindReminder},
				"later": {KindInvitation},
			},
		},
		{
			name:         "Без напоминаний",
			remindBefore: 0,
			wantKinds: map[string][]Kind{
				"soon":  {KindInvitation},
				"later": {KindInvitation},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := NewFeed(tt.remindBefore)
			feed.SetClock(func() time.Time { return now })

			added := feed.Sync(events)
			got := map[string][]Kind{}
			for _, n := range added {
				got[n.EventID] = append(got[n.EventID], n.Kind)
				_, err := uuid.Parse(n.ID)
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantKinds, got)

			// повторная синхронизация ничего не добавляет
			assert.Empty(t, feed.Sync(events))
			assert.Len(t, feed.List(), len(added))
		})
	}
}

func TestFeed_ReminderText(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(time.Hour)
	feed.SetClock(func() time.Time { return now })

	added := feed.Sync([]models.Event{
		{ID: "e1", Name: "Планерка", TimeStart: now.Add(15 * time.Minute), TimeEnd: now.Add(time.Hour)},
	})
	require.Len(t, added, 2)
	assert.Equal(t, "Вас пригласили на мероприятие «Планерка»", added[0].Text)
	assert.Equal(t, "«Планерка» начнется через 15 мин.", added[1].Text)
}

func TestFeed_MarkRead(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(0)
	feed.SetClock(func() time.Time { return now })

	added := feed.Sync([]models.Event{
		{ID: "e1", Name: "A", TimeStart: now.Add(24 * time.Hour), TimeEnd: now.Add(25 * time.Hour)},
		{ID: "e2", Name: "B", TimeStart: now.Add(48 * time.Hour), TimeEnd: now.Add(49 * time.Hour)},
	})
	require.Len(t, added, 2)
	assert.Equal(t, 2, feed.Unread())

	assert.True(t, feed.MarkRead(added[0].ID))
	assert.False(t, feed.MarkRead("missing"))
	assert.Equal(t, 1, feed.Unread())

	feed.MarkAllRead()
	assert.Equal(t, 0, feed.Unread())

	feed.Clear()
	assert.Empty(t, feed.List())
	assert.Len(t, feed.Sync([]models.Event{{ID: "e1", Name: "A", TimeEnd: now.Add(time.Hour)}}), 1)
}

func TestFeed_ListNewestFirst(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(0)
	feed.SetClock(func() time.Time { return now })
	feed.Sync([]models.Event{{ID: "e1", TimeEnd: now.Add(time.Hour)}})

	feed.SetClock(func() time.Time { return now.Add(time.Minute) })
	feed.Sync([]models.Event{{ID: "e2", TimeEnd: now.Add(time.Hour)}})

	list := feed.List()
	require.Len(t, list, 2)
	assert.Equal(t, "e2", list[0].EventID)
	assert.Equal(t, "e1", list[1].EventID)
}
