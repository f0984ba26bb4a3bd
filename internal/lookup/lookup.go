// Package lookup поиск по мере ввода: с задержкой и отменой устаревших запросов.
//
// Каждый вызов Search отменяет предыдущий. Результат, пришедший после
// более нового запроса, отбрасывается: порядок определяется моментом
// вызова, а не моментом ответа.
package lookup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrSuperseded запрос заменен более новым
var ErrSuperseded = errors.New("lookup: запрос заменен более новым")

// SearchFunc выполняет поиск
type SearchFunc[T any] func(ctx context.Context, query string) ([]T, error)

// Searcher поиск с задержкой для одного поля ввода
type Searcher[T any] struct {
	fn       SearchFunc[T]
	delay    time.Duration
	minQuery int

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// New создает поиск. delay - пауза перед запросом, minQuery - минимальная
// длина запроса в символах; более короткий запрос дает пустой результат без сети.
func New[T any](fn SearchFunc[T], delay time.Duration, minQuery int) *Searcher[T] {
	return &Searcher[T]{fn: fn, delay: delay, minQuery: minQuery}
}

// Search ищет query. Возвращает ErrSuperseded, если за время ожидания
// или запроса был вызван более новый Search.
func (s *Searcher[T]) Search(ctx context.Context, query string) ([]T, error) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	if len([]rune(query)) < s.minQuery {
		if s.stale(seq) {
			return nil, ErrSuperseded
		}
		return []T{}, nil
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if s.stale(seq) {
				return nil, ErrSuperseded
			}
			return nil, ctx.Err()
		}
	}

	items, err := s.fn(ctx, query)
	if s.stale(seq) {
		return nil, ErrSuperseded
	}
	return items, err
}

// Cancel отменяет текущий поиск (например, при закрытии формы)
func (s *Searcher[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher[T]) stale(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != s.seq
}
