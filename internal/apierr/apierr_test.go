package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"eventhub/internal/httpclient"
)

type panicError struct{}

func (panicError) Error() string { panic("сломанная ошибка") }

type emptyError struct{}

func (emptyError) Error() string { return "" }

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
		wantKind Kind
	}{
		{
			name:     "структурированное тело",
			err:      &httpclient.HTTPError{StatusCode: 400, Body: []byte(`{"error":"Неверный логин или пароль"}`)},
			fallback: "Не удалось войти",
			want:     "Неверный логин или пароль",
			wantKind: KindStructured,
		},
		{
			name:     "тело без поля error",
			err:      &httpclient.HTTPError{StatusCode: 500, Body: []byte(`<html>oops</html>`)},
			fallback: "Не удалось войти",
			want:     "request failed with status code 500",
			wantKind: KindUnstructured,
		},
		{
			name:     "поле error не строка",
			err:      &httpclient.HTTPError{StatusCode: 422, Body: []byte(`{"error":{"code":1}}`)},
			fallback: "x",
			want:     "request failed with status code 422",
			wantKind: KindUnstructured,
		},
		{
			name:     "пустое поле error",
			err:      &httpclient.HTTPError{StatusCode: 400, Body: []byte(`{"error":"  "}`)},
			fallback: "x",
			want:     "request failed with status code 400",
			wantKind: KindUnstructured,
		},
		{
			name:     "ошибка транспорта",
			err:      fmt.Errorf("Get \"http://api\": %w", errors.New("connection refused")),
			fallback: "Не удалось загрузить",
			want:     "Get \"http://api\": connection refused",
			wantKind: KindTransport,
		},
		{
			name:     "неизвестная ошибка без текста",
			err:      emptyError{},
			fallback: "Не удалось загрузить",
			want:     "Не удалось загрузить",
			wantKind: KindUnknown,
		},
		{
			name:     "паника в Error()",
			err:      panicError{},
			fallback: "",
			want:     DefaultMessage,
			wantKind: KindUnknown,
		},
		{
			name:     "nil",
			err:      nil,
			fallback: "",
			want:     DefaultMessage,
			wantKind: KindNone,
		},
		{
			name:     "уже нормализованная ошибка",
			err:      fmt.Errorf("обертка: %w", New("Команда не найдена")),
			fallback: "x",
			want:     "Команда не найдена",
			wantKind: KindStructured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				got := Message(tt.err, tt.fallback)
				assert.Equal(t, tt.want, got)
				assert.NotEmpty(t, got)
				assert.Equal(t, tt.wantKind, Classify(tt.err).Kind)
			})
		})
	}
}

func TestClassify_StatusCode(t *testing.T) {
	f := Classify(&httpclient.HTTPError{StatusCode: http.StatusForbidden, Body: []byte(`{"error":"Нет доступа"}`)})
	assert.Equal(t, http.StatusForbidden, f.StatusCode)
	assert.Equal(t, "structured", f.Kind.String())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))

	err := Wrap(&httpclient.HTTPError{StatusCode: 404, Body: []byte(`{"error":"Мероприятие не найдено"}`)}, "Не удалось")
	var apiErr *Error
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Мероприятие не найдено", apiErr.Message)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, http.StatusNotFound, Classify(err).StatusCode)

	canceled := Wrap(fmt.Errorf("request: %w", context.Canceled), "Не удалось")
	assert.ErrorIs(t, canceled, ErrCanceled)
	assert.True(t, IsCanceled(canceled))
}

func TestNew_Empty(t *testing.T) {
	assert.Equal(t, DefaultMessage, New(" ").Error())
}
