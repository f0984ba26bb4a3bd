package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(calls *atomic.Int32) SearchFunc[string] {
	return func(ctx context.Context, query string) ([]string, error) {
		calls.Add(1)
		return []string{query}, nil
	}
}

// waitIssued ждет, пока Searcher зарегистрирует n-й вызов
func waitIssued[T any](t *testing.T, s *Searcher[T], n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.seq == n
	}, time.Second, time.Millisecond)
}

func TestSearcher_Debounce(t *testing.T) {
	var calls atomic.Int32
	s := New(echo(&calls), 50*time.Millisecond, 0)

	var wg sync.WaitGroup
	results := make([]error, 3)
	for i, q := range []string{"и", "ив", "ива"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, results[i] = s.Search(context.Background(), q)
		}(i, q)
		waitIssued(t, s, uint64(i+1))
	}

	items, err := s.Search(context.Background(), "иван")
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, []string{"иван"}, items)
	for _, err := range results {
		assert.ErrorIs(t, err, ErrSuperseded)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearcher_StaleResultDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	fn := func(ctx context.Context, query string) ([]string, error) {
		if query == "old" {
			close(firstStarted)
			// отвечает даже после отмены, как медленный сервер
			<-releaseFirst
			return []string{"old"}, nil
		}
		return []string{query}, nil
	}
	s := New[string](fn, 0, 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "old")
		done <- err
	}()
	<-firstStarted

	items, err := s.Search(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, items)

	close(releaseFirst)
	assert.ErrorIs(t, <-done, ErrSuperseded)
}

func TestSearcher_CancelsEarlierRequest(t *testing.T) {
	started := make(chan struct{})
	fn := func(ctx context.Context, query string) ([]string, error) {
		if query == "first" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []string{query}, nil
	}
	s := New[string](fn, 0, 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "first")
		done <- err
	}()
	<-started

	_, err := s.Search(context.Background(), "second")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("первый запрос не был отменен")
	}
}

func TestSearcher_ShortQuery(t *testing.T) {
	var calls atomic.Int32
	s := New(echo(&calls), 0, 2)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "Пустой запрос", query: "  ", want: []string{}},
		{name: "Один символ", query: "и", want: []string{}},
		{name: "Достаточная длина", query: "ив", want: []string{"ив"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, items)
		})
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearcher_ParentCanceled(t *testing.T) {
	var calls atomic.Int32
	s := New(echo(&calls), time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "иван")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearcher_Cancel(t *testing.T) {
	var calls atomic.Int32
	s := New(echo(&calls), time.Second, 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "иван")
		done <- err
	}()
	waitIssued(t, s, 1)
	s.Cancel()

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearcher_PropagatesError(t *testing.T) {
	boom := errors.New("сервер недоступен")
	s := New(func(ctx context.Context, query string) ([]string, error) { return nil, boom }, 0, 0)

	_, err := s.Search(context.Background(), "иван")
	assert.ErrorIs(t, err, boom)
}
