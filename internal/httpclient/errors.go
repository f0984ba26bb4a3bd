package httpclient

import "fmt"

// HTTPError ответ сервера со статусом вне диапазона 2xx
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}
