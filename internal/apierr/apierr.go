// Package apierr приводит разнородные ошибки запросов к одному
// человекочитаемому сообщению.
//
// Порядок источников сообщения: поле error в теле ответа сервера,
// затем собственное сообщение транспорта, затем сообщение по умолчанию
// от вызывающего. Функции пакета чистые и никогда не паникуют.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"eventhub/internal/httpclient"
)

// DefaultMessage используется, когда ни один источник не дал текста
const DefaultMessage = "Что-то пошло не так"

// ErrCanceled запрос отменен вызывающим. Это не ошибка для пользователя.
var ErrCanceled = errors.New("запрос отменен")

// Kind вид сбоя
type Kind int

const (
	KindNone Kind = iota
	// KindTransport ответ не получен (сеть, таймаут, DNS)
	KindTransport
	// KindStructured ответ не-2xx с полем error
	KindStructured
	// KindUnstructured ответ не-2xx без поля error
	KindUnstructured
	// KindUnknown ошибка неизвестного вида без текста
	KindUnknown
	// KindCanceled запрос отменен
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindStructured:
		return "structured"
	case KindUnstructured:
		return "unstructured"
	case KindUnknown:
		return "unknown"
	case KindCanceled:
		return "canceled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Failure разобранная ошибка запроса
type Failure struct {
	Kind       Kind
	Message    string
	StatusCode int
}

// Error ошибка доменного API, несущая только текст для пользователя.
// StatusCode - код ответа сервера, 0 для ошибок валидации и транспорта.
type Error struct {
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

// New создает ошибку с готовым сообщением (например, ошибку валидации)
func New(message string) *Error {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	return &Error{Message: message}
}

// IsCanceled сообщает, что запрос был отменен, а не завершился ошибкой
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// Classify определяет вид сбоя и извлекает из него сообщение
func Classify(err error) (f Failure) {
	if err == nil {
		return Failure{Kind: KindNone}
	}
	defer func() {
		if r := recover(); r != nil {
			f = Failure{Kind: KindUnknown}
		}
	}()

	if IsCanceled(err) {
		return Failure{Kind: KindCanceled, Message: ErrCanceled.Error()}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return Failure{Kind: KindStructured, Message: strings.TrimSpace(apiErr.Message), StatusCode: apiErr.StatusCode}
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		if msg := structuredMessage(httpErr.Body); msg != "" {
			return Failure{Kind: KindStructured, Message: msg, StatusCode: httpErr.StatusCode}
		}
		return Failure{Kind: KindUnstructured, Message: httpErr.Error(), StatusCode: httpErr.StatusCode}
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return Failure{Kind: KindUnknown}
	}
	return Failure{Kind: KindTransport, Message: msg}
}

// structuredMessage достает строковое поле error из JSON-тела
func structuredMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	field := gjson.GetBytes(body, "error")
	if field.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(field.String())
}

// Message возвращает непустое сообщение для пользователя
func Message(err error, fallback string) string {
	f := Classify(err)
	if f.Kind != KindCanceled && f.Message != "" {
		return f.Message
	}
	if msg := strings.TrimSpace(fallback); msg != "" {
		return msg
	}
	return DefaultMessage
}

// Wrap нормализует ошибку запроса для доменного API.
// Отмена возвращается как ErrCanceled, nil - как nil.
func Wrap(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return &Error{Message: Message(err, fallback), StatusCode: Classify(err).StatusCode}
}
