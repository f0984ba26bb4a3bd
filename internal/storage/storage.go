// Package storage хранит данные сессии между запусками клиента.
//
// Хранилище ключ-значение с двумя известными ключами: KeyUser и KeyToken.
// Записывать в него может только хранилище сессии.
package storage

import "errors"

const (
	// KeyUser JSON-запись пользователя сессии
	KeyUser = "user"
	// KeyToken непрозрачный bearer-токен
	KeyToken = "token"
)

// ErrClosed возвращается после закрытия хранилища
var ErrClosed = errors.New("storage: хранилище закрыто")

// Store долговременное хранилище клиента.
// SetItems и RemoveItems применяются атомарно: либо все ключи, либо ни одного.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	SetItems(items map[string]string) error
	RemoveItems(keys ...string) error
	Close() error
}

// TokenFunc возвращает функцию чтения токена из хранилища в момент вызова.
// Ошибка чтения трактуется как отсутствие токена.
func TokenFunc(s Store) func() string {
	return func() string {
		token, ok, err := s.Get(KeyToken)
		if err != nil || !ok {
			return ""
		}
		return token
	}
}
