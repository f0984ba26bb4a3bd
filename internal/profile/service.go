package profile

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"eventhub/internal/apierr"
	"eventhub/internal/logging"
	"eventhub/internal/models"
)

// API запросы профиля. Реализуется *api.Users.
type API interface {
	Profile(ctx context.Context) (*models.Profile, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error)
	ChangePassword(ctx context.Context, req models.PasswordChange) error
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.Profile, error)
	DeleteAvatar(ctx context.Context) (*models.Profile, error)
}

// SessionSync обновляет поля профиля в сессии. Реализуется *session.Store.
type SessionSync interface {
	SetProfileFields(fields models.ProfileFields) error
}

// Service выполняет операции над профилем и проводит их через Store
type Service struct {
	store   *Store
	api     API
	session SessionSync
	log     logrus.FieldLogger
}

// NewService создает сервис профиля
func NewService(store *Store, api API, session SessionSync, logger logrus.FieldLogger) *Service {
	return &Service{
		store:   store,
		api:     api,
		session: session,
		log:     logging.Component(logger, "profile"),
	}
}

// Store возвращает хранилище, в которое пишет сервис
func (s *Service) Store() *Store {
	return s.store
}

// Load возвращает профиль, загружая его только при первом обращении
func (s *Service) Load(ctx context.Context) (*models.Profile, error) {
	if p := s.store.State().Profile; p != nil {
		return p, nil
	}
	return s.Fetch(ctx)
}

// Fetch загружает профиль с сервера
func (s *Service) Fetch(ctx context.Context) (*models.Profile, error) {
	return s.run(ctx, OpFetch, "Не удалось загрузить профиль", false, func() (*models.Profile, error) {
		return s.api.Profile(ctx)
	})
}

// Update сохраняет изменения профиля и переносит их в сессию
func (s *Service) Update(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	return s.run(ctx, OpUpdate, "Не удалось обновить профиль", true, func() (*models.Profile, error) {
		return s.api.UpdateProfile(ctx, upd)
	})
}

// ChangePassword меняет пароль. Успех выставляет PasswordChanged.
func (s *Service) ChangePassword(ctx context.Context, req models.PasswordChange) error {
	_, err := s.run(ctx, OpPassword, "Не удалось сменить пароль", false, func() (*models.Profile, error) {
		return nil, s.api.ChangePassword(ctx, req)
	})
	return err
}

// UploadAvatar загружает аватар
func (s *Service) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.Profile, error) {
	return s.run(ctx, OpAvatar, "Не удалось загрузить аватар", true, func() (*models.Profile, error) {
		return s.api.UploadAvatar(ctx, filename, r)
	})
}

// DeleteAvatar удаляет аватар. Если сервер не вернул профиль,
// аватар убирается из текущего профиля.
func (s *Service) DeleteAvatar(ctx context.Context) (*models.Profile, error) {
	return s.run(ctx, OpAvatar, "Не удалось удалить аватар", true, func() (*models.Profile, error) {
		p, err := s.api.DeleteAvatar(ctx)
		if err != nil || p != nil {
			return p, err
		}
		if cur := s.store.State().Profile; cur != nil {
			cur.AvatarURL = ""
			return cur, nil
		}
		return nil, nil
	})
}

func (s *Service) run(ctx context.Context, op Op, fallback string, sync bool, fn func() (*models.Profile, error)) (*models.Profile, error) {
	s.store.Begin(op)

	p, err := fn()
	if apierr.IsCanceled(err) {
		s.store.Abort(op)
		return nil, apierr.ErrCanceled
	}
	if err != nil {
		msg := apierr.Message(err, fallback)
		s.log.WithField("op", op.String()).Info("операция не выполнена: " + msg)
		s.store.Fail(op, msg)
		return nil, err
	}

	if p != nil && p.ID == "" && p.Login == "" {
		// пустая сущность от сервера: состояние и сессию не трогаем
		err := apierr.New(fallback)
		s.log.WithField("op", op.String()).Warn("сервер вернул пустой профиль")
		s.store.Fail(op, err.Message)
		return nil, err
	}

	s.store.Succeed(op, p)
	if sync && p != nil && s.session != nil {
		if err := s.session.SetProfileFields(p.Fields()); err != nil {
			s.log.WithError(err).Warn("не удалось обновить пользователя сессии")
		}
	}
	return p, nil
}
