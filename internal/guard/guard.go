// Package guard охранники навигации.
//
// Охранник - чистая функция от состояния сессии: без сетевых вызовов,
// без ошибок, только решение "пустить" или "перенаправить".
package guard

import (
	"slices"

	"eventhub/internal/session"
)

// Маршруты, на которые перенаправляют охранники
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision решение охранника
type Decision struct {
	Allowed  bool
	Redirect string
}

// Allow пропускает навигацию
func Allow() Decision {
	return Decision{Allowed: true}
}

// RedirectTo перенаправляет на path
func RedirectTo(path string) Decision {
	return Decision{Redirect: path}
}

// Policy охранник маршрута
type Policy func(session.State) Decision

// RequireAuth без токена отправляет на страницу входа
func RequireAuth() Policy {
	return func(s session.State) Decision {
		if !s.Authenticated() {
			return RedirectTo(LoginPath)
		}
		return Allow()
	}
}

// GuestOnly уже вошедшего пользователя уводит со страницы входа на главную
func GuestOnly() Policy {
	return func(s session.State) Decision {
		if s.Authenticated() {
			return RedirectTo(HomePath)
		}
		return Allow()
	}
}

// RequireRole пускает только роли из списка. Пустой список пускает всех.
// Ставится после RequireAuth.
func RequireRole(roles ...string) Policy {
	allowed := slices.Clone(roles)
	return func(s session.State) Decision {
		if len(allowed) == 0 || slices.Contains(allowed, s.Role()) {
			return Allow()
		}
		return RedirectTo(HomePath)
	}
}

// Chain применяет охранников по порядку до первого перенаправления
func Chain(policies ...Policy) Policy {
	return func(s session.State) Decision {
		for _, p := range policies {
			if p == nil {
				continue
			}
			if d := p(s); !d.Allowed {
				return d
			}
		}
		return Allow()
	}
}
