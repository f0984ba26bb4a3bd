// Package auth разбирает bearer-токены, которые выдает сервер.
//
// Клиент не проверяет подпись: секрет есть только у сервера. Из токена
// читается лишь срок действия, чтобы при старте не восстанавливать
// заведомо истекшую сессию. Непрозрачные (не JWT) токены считаются бессрочными.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrExpiredToken = errors.New("token has expired")
)

// Claims представляет полезную нагрузку токена сервера
type Claims struct {
	UserID string `json:"user_id"`
	Login  string `json:"login"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Info сведения, извлеченные из токена без проверки подписи
type Info struct {
	UserID    string
	Login     string
	ExpiresAt time.Time // нулевое значение - срок не задан
}

// Inspect разбирает токен без проверки подписи.
// ok == false, если токен не является JWT.
func Inspect(tokenString string) (Info, bool) {
	if tokenString == "" {
		return Info{}, false
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return Info{}, false
	}

	info := Info{UserID: claims.UserID, Login: claims.Login}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}

// CheckExpiry возвращает ErrExpiredToken, если токен - JWT с истекшим сроком
func CheckExpiry(tokenString string, now time.Time) error {
	info, ok := Inspect(tokenString)
	if !ok || info.ExpiresAt.IsZero() {
		return nil
	}
	if !now.Before(info.ExpiresAt) {
		return ErrExpiredToken
	}
	return nil
}

// GenerateToken подписывает токен HS256. Используется тестовым сервером.
func GenerateToken(secret []byte, userID, login, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Login:  login,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken проверяет подпись и срок действия токена
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неожиданный метод подписи")
		}
		return secret, nil
	})
	if err != nil {
		// Проверяем, не истек ли срок действия токена
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrExpiredToken
		}
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("недействительный токен")
	}
	return claims, nil
}
