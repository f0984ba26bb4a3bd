package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"eventhub/internal/app"
	"eventhub/internal/eventlist"
	"eventhub/internal/lookup"
	"eventhub/internal/models"
	"eventhub/internal/router"
)

var errUsage = errors.New("неверные аргументы команды")

// command экран CLI. route - клиентский маршрут, через охранников которого
// проходит команда; пустой route не проверяется.
type command struct {
	route string
	run   func(ctx context.Context, a *app.App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"login":         {route: router.Login, run: cmdLogin},
	"logout":        {route: router.Home, run: cmdLogout},
	"whoami":        {route: router.Home, run: cmdWhoami},
	"notifications": {route: router.Home, run: cmdNotifications},
	"profile":       {route: router.ProfileEdit, run: cmdProfile},
	"prefs":         {route: router.ProfileEdit, run: cmdPrefs},
	"events":        {route: router.Events, run: cmdEvents},
	"feedback":      {route: router.Feedback, run: cmdFeedback},
	"teams":         {route: router.Teams, run: cmdTeams},
	"users":         {route: router.Teams, run: cmdUsers},
	"applications":  {route: router.Applications, run: cmdApplications},
	"serve":         {run: cmdServe},
}

func run(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	if cmd.route != "" {
		if err := a.Enter(cmd.route); err != nil {
			return err
		}
	}
	return cmd.run(ctx, a, args[1:], out)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// subcommand отделяет имя подкоманды; без него используется def
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

// parse разбирает флаги, забирая заданное число позиционных аргументов перед ними
func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if len(args) < positional {
		return nil, errUsage
	}
	pos := args[:positional]
	for _, p := range pos {
		if strings.HasPrefix(p, "-") {
			return nil, errUsage
		}
	}
	if err := fs.Parse(args[positional:]); err != nil {
		return nil, errUsage
	}
	return pos, nil
}

// visited возвращает имена флагов, заданных явно
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTime(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректное время -%s (ожидается RFC3339): %w", name, err)
	}
	return t, nil
}

func cmdLogin(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	login := fs.String("login", "", "логин")
	password := fs.String("password", os.Getenv("EVENTHUB_PASSWORD"), "пароль")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if err := a.Session.Login(ctx, models.LoginRequest{Login: *login, Password: *password}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Вы вошли как %s\n", a.Session.State().User.FullName())
	return nil
}

func cmdLogout(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if err := a.Session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Сессия завершена")
	return nil
}

func cmdWhoami(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	return printJSON(out, a.Session.State().User)
}

func cmdNotifications(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	invited, err := a.API.Events.Invited(ctx)
	if err != nil {
		return err
	}
	a.Feed.Sync(invited)
	return printJSON(out, a.Feed.List())
}

func cmdProfile(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, args := subcommand(args, "show")
	switch name {
	case "show":
		p, err := a.Profile.Fetch(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, p)

	case "update":
		fs := flag.NewFlagSet("profile update", flag.ContinueOnError)
		firstName := fs.String("name", "", "имя")
		surname := fs.String("surname", "", "фамилия")
		email := fs.String("email", "", "email")
		telegram := fs.String("telegram", "", "telegram")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}

		set := visited(fs)
		var upd models.ProfileUpdate
		if set["name"] {
			upd.Name = firstName
		}
		if set["surname"] {
			upd.Surname = surname
		}
		if set["email"] {
			upd.Email = email
		}
		if set["telegram"] {
			upd.Telegram = telegram
		}
		p, err := a.Profile.Update(ctx, upd)
		if err != nil {
			return err
		}
		return printJSON(out, p)

	case "password":
		fs := flag.NewFlagSet("profile password", flag.ContinueOnError)
		oldPassword := fs.String("old", "", "текущий пароль")
		newPassword := fs.String("new", "", "новый пароль")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		if err := a.Profile.ChangePassword(ctx, models.PasswordChange{OldPassword: *oldPassword, NewPassword: *newPassword}); err != nil {
			return err
		}
		if a.Profile.Store().State().PasswordChanged {
			fmt.Fprintln(out, "Пароль изменен")
			a.Profile.Store().ClearPasswordChanged()
		}
		return nil

	case "avatar":
		fs := flag.NewFlagSet("profile avatar", flag.ContinueOnError)
		file := fs.String("file", "", "путь к изображению")
		remove := fs.Bool("delete", false, "удалить аватар")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		if *remove {
			p, err := a.Profile.DeleteAvatar(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, p)
		}
		if *file == "" {
			return errUsage
		}
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("не удалось открыть файл: %w", err)
		}
		defer f.Close()
		p, err := a.Profile.UploadAvatar(ctx, *file, f)
		if err != nil {
			return err
		}
		return printJSON(out, p)
	}
	return errUsage
}

func cmdPrefs(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, args := subcommand(args, "show")
	prefs, err := a.API.Users.Preferences(ctx)
	if err != nil {
		return err
	}

	switch name {
	case "show":
		return printJSON(out, prefs)
	case "set":
		fs := flag.NewFlagSet("prefs set", flag.ContinueOnError)
		email := fs.Bool("email", prefs.Email, "уведомления на email")
		telegram := fs.Bool("telegram", prefs.Telegram, "уведомления в telegram")
		remind := fs.Int("remind", prefs.RemindBeforeMin, "напоминать за N минут")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		updated, err := a.API.Users.UpdatePreferences(ctx, models.NotificationPreferences{
			Email:           *email,
			Telegram:        *telegram,
			RemindBeforeMin: *remind,
		})
		if err != nil {
			return err
		}
		return printJSON(out, updated)
	}
	return errUsage
}

type eventsOutput struct {
	eventlist.Lists
	Empty bool `json:"empty"`
}

func cmdEvents(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, args := subcommand(args, "list")
	switch name {
	case "list":
		fs := flag.NewFlagSet("events list", flag.ContinueOnError)
		query := fs.String("name", "", "название")
		status := fs.String("status", "", "статус: suggested, confirmed, rejected, cancelled")
		typ := fs.String("type", "", "тип: general, personal, group")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		events, err := a.API.Events.Search(ctx, models.EventSearch{
			Name:   strings.TrimSpace(*query),
			Status: models.EventStatus(*status),
			Type:   models.EventType(*typ),
		})
		if err != nil {
			return err
		}
		return printJSON(out, eventsOutput{Lists: eventlist.Partition(events, time.Now()), Empty: len(events) == 0})

	case "show":
		pos, err := parse(flag.NewFlagSet("events show", flag.ContinueOnError), args, 1)
		if err != nil {
			return err
		}
		ev, err := a.API.Events.Get(ctx, pos[0])
		if err != nil {
			return err
		}
		return printJSON(out, ev)

	case "suggest":
		fs := flag.NewFlagSet("events suggest", flag.ContinueOnError)
		title := fs.String("name", "", "название")
		description := fs.String("description", "", "описание")
		start := fs.String("start", "", "начало, RFC3339")
		end := fs.String("end", "", "окончание, RFC3339")
		typ := fs.String("type", string(models.EventGeneral), "тип: general, personal, group")
		location := fs.String("location", "", "место")
		keywords := fs.String("keywords", "", "ключевые слова через запятую")
		participants := fs.String("participants", "", "идентификаторы участников через запятую")
		teams := fs.String("teams", "", "идентификаторы команд через запятую")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}

		s := models.EventSuggestion{
			Name:           *title,
			Description:    *description,
			Location:       *location,
			Type:           models.EventType(*typ),
			Keywords:       splitList(*keywords),
			ParticipantIDs: splitList(*participants),
			TeamIDs:        splitList(*teams),
		}
		var err error
		if *start != "" {
			if s.TimeStart, err = parseTime("start", *start); err != nil {
				return err
			}
		}
		if *end != "" {
			if s.TimeEnd, err = parseTime("end", *end); err != nil {
				return err
			}
		}
		ev, err := a.API.Events.Suggest(ctx, s)
		if err != nil {
			return err
		}
		return printJSON(out, ev)

	case "update":
		fs := flag.NewFlagSet("events update", flag.ContinueOnError)
		title := fs.String("name", "", "название")
		description := fs.String("description", "", "описание")
		location := fs.String("location", "", "место")
		start := fs.String("start", "", "начало, RFC3339")
		end := fs.String("end", "", "окончание, RFC3339")
		pos, err := parse(fs, args, 1)
		if err != nil {
			return err
		}

		set := visited(fs)
		var upd models.EventUpdate
		if set["name"] {
			upd.Name = title
		}
		if set["description"] {
			upd.Description = description
		}
		if set["location"] {
			upd.Location = location
		}
		if set["start"] {
			t, err := parseTime("start", *start)
			if err != nil {
				return err
			}
			upd.TimeStart = &t
		}
		if set["end"] {
			t, err := parseTime("end", *end)
			if err != nil {
				return err
			}
			upd.TimeEnd = &t
		}
		ev, err := a.API.Events.Update(ctx, pos[0], upd)
		if err != nil {
			return err
		}
		return printJSON(out, ev)

	case "respond":
		fs := flag.NewFlagSet("events respond", flag.ContinueOnError)
		status := fs.String("status", string(models.InvitationAccepted), "ответ: accepted, declined, maybe")
		pos, err := parse(fs, args, 1)
		if err != nil {
			return err
		}
		if err := a.API.Events.Respond(ctx, pos[0], models.InvitationStatus(*status)); err != nil {
			return err
		}
		fmt.Fprintln(out, "Ответ отправлен")
		return nil

	case "delete":
		pos, err := parse(flag.NewFlagSet("events delete", flag.ContinueOnError), args, 1)
		if err != nil {
			return err
		}
		if err := a.API.Events.Delete(ctx, pos[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "Мероприятие удалено")
		return nil
	}
	return errUsage
}

func cmdFeedback(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	events, err := a.API.Events.Search(ctx, models.EventSearch{})
	if err != nil {
		return err
	}
	userID := ""
	if u := a.Session.State().User; u != nil {
		userID = u.ID
	}
	return printJSON(out, eventlist.Feedback(events, userID, time.Now()))
}

func cmdTeams(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, args := subcommand(args, "list")
	switch name {
	case "list":
		fs := flag.NewFlagSet("teams list", flag.ContinueOnError)
		query := fs.String("name", "", "название")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		teams, err := a.API.Teams.Search(ctx, models.TeamSearch{Name: strings.TrimSpace(*query)})
		if err != nil {
			return err
		}
		return printJSON(out, teams)

	case "show":
		pos, err := parse(flag.NewFlagSet("teams show", flag.ContinueOnError), args, 1)
		if err != nil {
			return err
		}
		team, err := a.API.Teams.Get(ctx, pos[0])
		if err != nil {
			return err
		}
		return printJSON(out, team)

	case "create":
		fs := flag.NewFlagSet("teams create", flag.ContinueOnError)
		title := fs.String("name", "", "название")
		description := fs.String("description", "", "описание")
		users := fs.String("users", "", "идентификаторы участников через запятую")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		team, err := a.API.Teams.Create(ctx, models.TeamCreate{Name: *title, Description: *description, UserIDs: splitList(*users)})
		if err != nil {
			return err
		}
		return printJSON(out, team)

	case "delete":
		pos, err := parse(flag.NewFlagSet("teams delete", flag.ContinueOnError), args, 1)
		if err != nil {
			return err
		}
		if err := a.API.Teams.Delete(ctx, pos[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "Команда удалена")
		return nil

	case "add":
		// участник задается логином
		pos, err := parse(flag.NewFlagSet("teams add", flag.ContinueOnError), args, 2)
		if err != nil {
			return err
		}
		user, err := a.API.Users.GetByLogin(ctx, pos[1])
		if err != nil {
			return err
		}
		if err := a.API.Teams.AddMember(ctx, pos[0], user.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s добавлен в команду\n", user.Login)
		return nil

	case "remove":
		pos, err := parse(flag.NewFlagSet("teams remove", flag.ContinueOnError), args, 2)
		if err != nil {
			return err
		}
		user, err := a.API.Users.GetByLogin(ctx, pos[1])
		if err != nil {
			return err
		}
		if err := a.API.Teams.RemoveMember(ctx, pos[0], user.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s исключен из команды\n", user.Login)
		return nil
	}
	return errUsage
}

func cmdUsers(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	search := lookup.New[models.UserSummary](a.API.Users.Search, 0, 2)
	users, err := search.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(out, users)
}

func cmdApplications(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, args := subcommand(args, "list")
	switch name {
	case "list":
		events, err := a.API.Applications.Moderation(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, a.API.Applications.Cards(ctx, events))

	case "confirm", "reject":
		pos, err := parse(flag.NewFlagSet("applications "+name, flag.ContinueOnError), args, 1)
		if err != nil {
			return err
		}
		if name == "confirm" {
			err = a.API.Applications.Confirm(ctx, pos[0])
		} else {
			err = a.API.Applications.Reject(ctx, pos[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Заявка рассмотрена")
		return nil
	}
	return errUsage
}

func cmdServe(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.Config.ConsoleAddr, "адрес консоли")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	fmt.Fprintf(out, "Консоль: http://%s\n", *addr)
	return a.Console().ListenAndServe(ctx, *addr)
}
