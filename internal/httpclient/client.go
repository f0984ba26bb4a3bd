// Package httpclient единая точка настройки исходящих запросов к REST API.
//
// Клиент подставляет заголовок Authorization, если в хранилище есть токен,
// и больше ничего не делает: без повторов, кеша и ограничения частоты.
// Ошибки транспорта и ответы не-2xx возвращаются вызывающему как есть.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBodySize ограничивает размер читаемого ответа
const maxBodySize = 8 << 20

// TokenFunc возвращает текущий токен или пустую строку
type TokenFunc func() string

// Config настройки клиента
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client HTTP-адаптер к REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	log        logrus.FieldLogger
}

// Response ответ сервера с прочитанным телом
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Empty сообщает, что у ответа нет содержимого (204 или пустое тело)
func (r *Response) Empty() bool {
	return r.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(r.Body)) == 0
}

// JSON декодирует тело ответа в v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// New создает клиент. token может быть nil - тогда запросы идут без авторизации.
func New(cfg Config, token TokenFunc, logger logrus.FieldLogger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if token == nil {
		token = func() string { return "" }
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		token:      token,
		log:        logger,
	}
}

// BaseURL возвращает базовый адрес API
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do выполняет запрос с JSON-телом. body == nil - запрос без тела.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType)
}

// Upload выполняет запрос с произвольным телом (например multipart/form-data)
func (c *Client) Upload(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	return c.send(ctx, method, path, body, contentType)
}

// Get выполняет GET-запрос
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post выполняет POST-запрос с JSON-телом
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Patch выполняет PATCH-запрос с JSON-телом
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Delete выполняет DELETE-запрос
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// токен читается в момент запроса, а не при создании клиента
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Debug("запрос не выполнен")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("запрос выполнен")

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return out, nil
}
