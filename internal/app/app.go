// Package app собирает клиент: хранилище, HTTP-адаптер, сторы, маршруты и консоль.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"eventhub/internal/api"
	"eventhub/internal/config"
	"eventhub/internal/console"
	"eventhub/internal/httpclient"
	"eventhub/internal/logging"
	"eventhub/internal/metrics"
	"eventhub/internal/notify"
	"eventhub/internal/profile"
	"eventhub/internal/router"
	"eventhub/internal/session"
	"eventhub/internal/storage"
)

// remindBefore за сколько до начала мероприятия появляется напоминание
const remindBefore = time.Hour

// ErrNotFound экран не существует
var ErrNotFound = errors.New("страница не найдена")

// RedirectError навигация отклонена охранником
type RedirectError struct {
	Path string
	To   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("переход на %s отклонен, перенаправление на %s", e.Path, e.To)
}

// App клиент в сборе
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Storage  storage.Store
	API      *api.API
	Session  *session.Store
	Profile  *profile.Service
	Router   *router.Router
	Feed     *notify.Feed
	Metrics  *metrics.Metrics
	stopSync func()
}

// Open открывает хранилище по пути из конфигурации и собирает клиент
func Open(cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	st, err := storage.OpenSQLite(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	return New(cfg, st, logger), nil
}

// New собирает клиент поверх готового хранилища
func New(cfg *config.Config, st storage.Store, logger logrus.FieldLogger) *App {
	if logger == nil {
		logger = logging.Discard()
	}

	client := httpclient.New(httpclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, storage.TokenFunc(st), logging.Component(logger, "http"))
	a := api.New(client)

	sess := session.New(st, a.Auth, logger)
	m := metrics.New()

	app := &App{
		Config:  cfg,
		Log:     logger,
		Storage: st,
		API:     a,
		Session: sess,
		Profile: profile.NewService(profile.NewStore(), a.Users, sess, logger),
		Router:  router.New(sess, cfg.ApplicationsRoles, router.WithMetrics(m)),
		Feed:    notify.NewFeed(remindBefore),
		Metrics: m,
	}
	app.stopSync = sess.Subscribe(app.onSession)
	return app
}

// onSession сбрасывает данные пользователя после выхода
func (a *App) onSession(st session.State) {
	if st.Authenticated() {
		return
	}
	a.Profile.Store().Reset()
	a.Feed.Clear()
}

// Enter проверяет переход на экран при текущей сессии
func (a *App) Enter(path string) error {
	res := a.Router.Resolve(path)
	switch {
	case res.NotFound:
		return ErrNotFound
	case res.Redirect != "":
		return &RedirectError{Path: res.Path, To: res.Redirect}
	}
	return nil
}

// Console создает локальную веб-консоль
func (a *App) Console() *console.Server {
	return console.New(console.Deps{
		Session:        a.Session,
		Profile:        a.Profile,
		API:            a.API,
		Router:         a.Router,
		Notifications:  a.Feed,
		Metrics:        a.Metrics,
		Logger:         a.Log,
		LoginPerMinute: a.Config.LoginRatePerMinute,
		SearchDebounce: a.Config.SearchDebounce,
	})
}

// Close закрывает хранилище
func (a *App) Close() error {
	if a.stopSync != nil {
		a.stopSync()
	}
	return a.Storage.Close()
}
