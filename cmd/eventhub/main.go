package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"eventhub/internal/apierr"
	"eventhub/internal/app"
	"eventhub/internal/config"
	"eventhub/internal/logging"
	"eventhub/internal/router"
)

func main() {
	config.LoadEnvFiles()

	configPath := flag.String("config", os.Getenv("EVENTHUB_CONFIG"), "путь к YAML-файлу конфигурации")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ОШИБКА: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.Open(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("не удалось открыть хранилище сессии")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, a, flag.Args(), os.Stdout)
	stop()
	if cerr := a.Close(); cerr != nil {
		logger.WithError(cerr).Warn("не удалось закрыть хранилище")
	}

	os.Exit(report(os.Stderr, err))
}

// report печатает ошибку команды и возвращает код выхода.
// Отмененная команда завершается без сообщения.
func report(w io.Writer, err error) int {
	var redirect *app.RedirectError
	switch {
	case err == nil:
		return 0
	case apierr.IsCanceled(err):
		return 130
	case errors.As(err, &redirect) && redirect.To == router.Login:
		fmt.Fprintln(w, "Требуется вход: eventhub login -login <логин> -password <пароль>")
	case errors.As(err, &redirect):
		fmt.Fprintln(w, "Недостаточно прав для этого экрана")
	case errors.Is(err, errUsage):
		printUsage(w)
		return 2
	default:
		fmt.Fprintf(w, "ОШИБКА: %v\n", err)
	}
	return 1
}

func usage() {
	printUsage(os.Stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Использование: eventhub [-config файл] <команда> [аргументы]

Команды:
  login -login <логин> -password <пароль>   вход
  logout                                     выход
  whoami                                     пользователь сессии
  profile [show|update|password|avatar]      профиль
  prefs [show|set]                           настройки уведомлений
  events [list|show|suggest|update|respond|delete]
  feedback                                   прошедшие мероприятия с участием
  teams [list|show|create|delete|add|remove]
  users <запрос>                             поиск пользователей
  applications [list|confirm|reject]         модерация заявок
  notifications                              уведомления
  serve                                      локальная веб-консоль
`)
}
