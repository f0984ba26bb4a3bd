package eventlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"eventhub/internal/models"
)

func ids(events []models.Event) []string {
	out := []string{}
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestPartition(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	at := func(hours int) time.Time { return now.Add(time.Duration(hours) * time.Hour) }

	events := []models.Event{
		{ID: "past-old", Status: models.StatusConfirmed, TimeStart: at(-72), TimeEnd: at(-70)},
		{ID: "past-new", Status: models.StatusConfirmed, TimeStart: at(-5), TimeEnd: at(-4)},
		{ID: "running", Status: models.StatusConfirmed, TimeStart: at(-1), TimeEnd: at(1)},
		{ID: "later", Status: models.StatusConfirmed, TimeStart: at(48), TimeEnd: at(50)},
		{ID: "soon", Status: models.StatusConfirmed, TimeStart: at(2), TimeEnd: at(3)},
		{ID: "suggested-late", Status: models.StatusSuggested, TimeStart: at(100), TimeEnd: at(101)},
		{ID: "suggested-early", Status: models.StatusSuggested, TimeStart: at(10), TimeEnd: at(11)},
		{ID: "rejected", Status: models.StatusRejected, TimeStart: at(5), TimeEnd: at(6)},
		{ID: "cancelled", Status: models.StatusCancelled, TimeStart: at(-5), TimeEnd: at(-4)},
		{ID: "no-status", TimeStart: at(20), TimeEnd: at(21)},
	}

	lists := Partition(events, now)
	assert.Equal(t, []string{"past-new", "past-old"}, ids(lists.Past))
	assert.Equal(t, []string{"running", "soon", "no-status", "later"}, ids(lists.Upcoming))
	assert.Equal(t, []string{"suggested-early", "suggested-late"}, ids(lists.Moderation))
}

func TestPartition_Empty(t *testing.T) {
	lists := Partition(nil, time.Now())
	assert.NotNil(t, lists.Past)
	assert.NotNil(t, lists.Upcoming)
	assert.NotNil(t, lists.Moderation)
	assert.Empty(t, lists.Past)
}

func TestFeedback(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	events := []models.Event{
		{ID: "e1", Status: models.StatusConfirmed, TimeStart: now.Add(-48 * time.Hour), TimeEnd: now.Add(-47 * time.Hour), ParticipantIDs: []string{"u1", "u2"}},
		{ID: "e2", Status: models.StatusConfirmed, TimeStart: now.Add(-24 * time.Hour), TimeEnd: now.Add(-23 * time.Hour), ParticipantIDs: []string{"u2"}},
		{ID: "e3", Status: models.StatusConfirmed, TimeStart: now.Add(time.Hour), TimeEnd: now.Add(2 * time.Hour), ParticipantIDs: []string{"u1"}},
	}

	assert.Equal(t, []string{"e1"}, ids(Feedback(events, "u1", now)))
	assert.Equal(t, []string{"e2", "e1"}, ids(Feedback(events, "u2", now)))
	assert.Empty(t, Feedback(events, "u3", now))
}
