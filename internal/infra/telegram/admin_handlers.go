// internal/infra/telegram/admin_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"training_bot/internal/app"
	"training_bot/internal/domain/broadcast"
	"training_bot/internal/domain/training"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	dateTimeLayout = "02.01.2006 15:04"
	clockLayout    = "15:04"
)

// RegisterAdminHandlers wires the management commands. Authorization happens
// inside AdminService; handlers only parse input and render results.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	adminService *app.AdminService,
	baseLogger *logrus.Entry,
) {
	handlerLog := func(c telebot.Context, name string) *logrus.Entry {
		return baseLogger.WithFields(logrus.Fields{
			"handler":   name,
			"sender_id": c.Sender().ID,
		})
	}

	b.Handle("/admin_help", func(c telebot.Context) error {
		if !adminService.IsAdmin(c.Sender().ID) {
			return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
		}
		var helpText strings.Builder
		helpText.WriteString("Команды администратора:\n\n")
		helpText.WriteString("`/add_training <ДД.ММ.ГГГГ> <ЧЧ:ММ> [макс. участников]`\n - Создать тренировку.\n\n")
		helpText.WriteString("`/del_training <ID>`\n - Удалить тренировку вместе с записями.\n\n")
		helpText.WriteString("`/add_broadcast once <ДД.ММ.ГГГГ> <ЧЧ:ММ> <текст>`\n - Разовое сообщение в канал.\n\n")
		helpText.WriteString("`/add_broadcast daily <ЧЧ:ММ> <текст>`\n - Ежедневное сообщение.\n\n")
		helpText.WriteString("`/add_broadcast weekly <дни 0-6 через запятую, 0=Пн> <ЧЧ:ММ> <текст>`\n - Еженедельное сообщение.\n\n")
		helpText.WriteString("`/add_broadcast monthly <день 1-31> <ЧЧ:ММ> <текст>`\n - Ежемесячное сообщение.\n\n")
		helpText.WriteString("`/edit_broadcast <ID> <расписание и текст как в /add_broadcast>`\n - Заменить расписание и текст сообщения.\n\n")
		helpText.WriteString("`/list_broadcasts`\n - Показать все сообщения рассылки.\n\n")
		helpText.WriteString("`/stop_broadcast <ID>`\n - Остановить рассылку, не удаляя её.\n\n")
		helpText.WriteString("`/del_broadcast <ID>`\n - Удалить сообщение рассылки.\n\n")
		helpText.WriteString("`/send_now <ID>`\n - Отправить сообщение немедленно.\n\n")
		helpText.WriteString("`/mark_paid <ID записи>`\n - Отметить запись как оплаченную.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/add_training", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/add_training")
		logCtx.Info("Command received")

		args := c.Args()
		if len(args) < 2 || len(args) > 3 {
			return c.Send("Неверный формат. Используйте: /add_training <ДД.ММ.ГГГГ> <ЧЧ:ММ> [макс. участников]")
		}

		startsAt, err := time.ParseInLocation(dateTimeLayout, args[0]+" "+args[1], time.Local)
		if err != nil {
			return c.Send("Ошибка: дата и время должны быть в формате ДД.ММ.ГГГГ ЧЧ:ММ.")
		}

		maxParticipants := 16
		if len(args) == 3 {
			maxParticipants, err = strconv.Atoi(args[2])
			if err != nil || maxParticipants <= 0 {
				return c.Send("Ошибка: максимум участников должен быть положительным числом.")
			}
		}

		t := &training.Training{StartsAt: startsAt, MaxParticipants: maxParticipants}
		if err := adminService.CreateTraining(ctx, c.Sender().ID, t); err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to create training")
			return c.Send("Произошла ошибка при создании тренировки.")
		}
		return c.Send(fmt.Sprintf("Тренировка #%d создана: %s, мест: %d.", t.ID, startsAt.Format(dateTimeLayout), maxParticipants))
	})

	b.Handle("/del_training", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/del_training")
		logCtx.Info("Command received")

		id, ok := singleIDArg(c)
		if !ok {
			return c.Send("Неверный формат. Используйте: /del_training <ID>")
		}
		if err := adminService.DeleteTraining(ctx, c.Sender().ID, id); err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to delete training")
			return c.Send(fmt.Sprintf("Не удалось удалить тренировку: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Тренировка #%d удалена.", id))
	})

	b.Handle("/add_broadcast", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/add_broadcast")
		logCtx.Info("Command received")

		m, usage, err := parseBroadcastArgs(c.Args())
		if usage != "" {
			return c.Send(usage)
		}
		if err != nil {
			return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
		}

		if err := adminService.CreateBroadcast(ctx, c.Sender().ID, m); err != nil {
			switch err {
			case app.ErrAdminNotAuthorized:
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			case app.ErrInvalidRepeatDays, app.ErrInvalidMonthDay:
				return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
			default:
				logCtx.WithError(err).Error("Failed to create broadcast message")
				return c.Send("Произошла ошибка при создании рассылки.")
			}
		}
		return c.Send(fmt.Sprintf("Рассылка #%d создана (%s).", m.ID, strings.ToLower(string(m.RepeatKind))))
	})

	b.Handle("/edit_broadcast", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/edit_broadcast")
		logCtx.Info("Command received")

		args := c.Args()
		if len(args) < 2 {
			return c.Send("Неверный формат. Используйте: /edit_broadcast <ID> <расписание и текст как в /add_broadcast>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID должен быть числом.")
		}

		m, usage, err := parseBroadcastArgs(args[1:])
		if usage != "" {
			return c.Send(usage)
		}
		if err != nil {
			return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
		}
		m.ID = id

		if err := adminService.UpdateBroadcast(ctx, c.Sender().ID, m); err != nil {
			switch err {
			case app.ErrAdminNotAuthorized:
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			case app.ErrInvalidRepeatDays, app.ErrInvalidMonthDay:
				return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
			default:
				logCtx.WithError(err).Error("Failed to update broadcast message")
				return c.Send(fmt.Sprintf("Не удалось изменить рассылку: %s", err.Error()))
			}
		}
		return c.Send(fmt.Sprintf("Рассылка #%d изменена (%s).", m.ID, strings.ToLower(string(m.RepeatKind))))
	})

	b.Handle("/list_broadcasts", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/list_broadcasts")

		messages, err := adminService.ListBroadcasts(ctx, c.Sender().ID)
		if err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to list broadcast messages")
			return c.Send("Произошла ошибка при получении списка рассылок.")
		}
		if len(messages) == 0 {
			return c.Send("Рассылок пока нет.")
		}

		var text strings.Builder
		text.WriteString("Сообщения рассылки:\n\n")
		for _, m := range messages {
			text.WriteString(formatBroadcast(m))
			text.WriteString("\n")
		}
		return c.Send(text.String())
	})

	b.Handle("/stop_broadcast", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/stop_broadcast")
		logCtx.Info("Command received")

		id, ok := singleIDArg(c)
		if !ok {
			return c.Send("Неверный формат. Используйте: /stop_broadcast <ID>")
		}
		if err := adminService.DeactivateBroadcast(ctx, c.Sender().ID, id); err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to deactivate broadcast message")
			return c.Send(fmt.Sprintf("Не удалось остановить рассылку: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Рассылка #%d остановлена.", id))
	})

	b.Handle("/del_broadcast", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/del_broadcast")
		logCtx.Info("Command received")

		id, ok := singleIDArg(c)
		if !ok {
			return c.Send("Неверный формат. Используйте: /del_broadcast <ID>")
		}
		if err := adminService.DeleteBroadcast(ctx, c.Sender().ID, id); err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to delete broadcast message")
			return c.Send(fmt.Sprintf("Не удалось удалить рассылку: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Рассылка #%d удалена.", id))
	})

	b.Handle("/send_now", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/send_now")
		logCtx.Info("Command received")

		id, ok := singleIDArg(c)
		if !ok {
			return c.Send("Неверный формат. Используйте: /send_now <ID>")
		}
		if err := adminService.ForceSendBroadcast(ctx, c.Sender().ID, id); err != nil {
			switch err {
			case app.ErrAdminNotAuthorized:
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			case app.ErrChannelNotConfigured:
				return c.Send("Ошибка: канал для рассылки не настроен (CHANNEL_ID).")
			default:
				logCtx.WithError(err).Error("Failed to force-send broadcast message")
				return c.Send(fmt.Sprintf("Не удалось отправить сообщение: %s", err.Error()))
			}
		}
		return c.Send(fmt.Sprintf("Сообщение #%d отправлено.", id))
	})

	b.Handle("/mark_paid", func(c telebot.Context) error {
		logCtx := handlerLog(c, "/mark_paid")
		logCtx.Info("Command received")

		id, ok := singleIDArg(c)
		if !ok {
			return c.Send("Неверный формат. Используйте: /mark_paid <ID записи>")
		}
		if err := adminService.MarkRegistrationPaid(ctx, c.Sender().ID, id); err != nil {
			if err == app.ErrAdminNotAuthorized {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}
			logCtx.WithError(err).Error("Failed to mark registration paid")
			return c.Send(fmt.Sprintf("Не удалось отметить оплату: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Запись #%d отмечена как оплаченная.", id))
	})
}

func singleIDArg(c telebot.Context) (int64, bool) {
	args := c.Args()
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseBroadcastArgs turns command arguments into an unsaved Message. The
// schedule carrier date encodes only what the repeat kind needs: full date
// for one-offs, clock time for daily and weekly, day-of-month plus clock time
// for monthly. Returns a non-empty usage string on malformed argument shape.
func parseBroadcastArgs(args []string) (*broadcast.Message, string, error) {
	const usage = "Неверный формат. Используйте /admin_help для примеров /add_broadcast."
	if len(args) < 1 {
		return nil, usage, nil
	}

	kind := strings.ToLower(args[0])
	switch kind {
	case "once":
		if len(args) < 4 {
			return nil, usage, nil
		}
		scheduledAt, err := time.ParseInLocation(dateTimeLayout, args[1]+" "+args[2], time.Local)
		if err != nil {
			return nil, "", fmt.Errorf("дата и время должны быть в формате ДД.ММ.ГГГГ ЧЧ:ММ")
		}
		return &broadcast.Message{
			Text:        strings.Join(args[3:], " "),
			RepeatKind:  broadcast.RepeatOnce,
			ScheduledAt: scheduledAt,
		}, "", nil

	case "daily":
		if len(args) < 3 {
			return nil, usage, nil
		}
		tod, err := parseClock(args[1])
		if err != nil {
			return nil, "", err
		}
		return &broadcast.Message{
			Text:        strings.Join(args[2:], " "),
			RepeatKind:  broadcast.RepeatDaily,
			ScheduledAt: tod,
		}, "", nil

	case "weekly":
		if len(args) < 4 {
			return nil, usage, nil
		}
		days, err := parseWeekdays(args[1])
		if err != nil {
			return nil, "", err
		}
		tod, err := parseClock(args[2])
		if err != nil {
			return nil, "", err
		}
		return &broadcast.Message{
			Text:        strings.Join(args[3:], " "),
			RepeatKind:  broadcast.RepeatWeekly,
			RepeatDays:  days,
			ScheduledAt: tod,
		}, "", nil

	case "monthly":
		if len(args) < 4 {
			return nil, usage, nil
		}
		day, err := strconv.Atoi(args[1])
		if err != nil || day < 1 || day > 31 {
			return nil, "", fmt.Errorf("день месяца должен быть числом от 1 до 31")
		}
		clock, err := parseClock(args[2])
		if err != nil {
			return nil, "", err
		}
		// January has 31 days, so any valid day-of-month fits the carrier.
		scheduledAt := time.Date(2000, time.January, day, clock.Hour(), clock.Minute(), 0, 0, time.Local)
		return &broadcast.Message{
			Text:        strings.Join(args[3:], " "),
			RepeatKind:  broadcast.RepeatMonthly,
			ScheduledAt: scheduledAt,
		}, "", nil
	}

	return nil, usage, nil
}

func parseClock(s string) (time.Time, error) {
	tod, err := time.ParseInLocation(clockLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("время должно быть в формате ЧЧ:ММ")
	}
	return time.Date(2000, time.January, 1, tod.Hour(), tod.Minute(), 0, 0, time.Local), nil
}

func parseWeekdays(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("дни недели должны быть числами от 0 (Пн) до 6 (Вс)")
		}
		days = append(days, d)
	}
	return days, nil
}

func formatBroadcast(m *broadcast.Message) string {
	status := "активна"
	if !m.IsActive {
		status = "остановлена"
	}

	var schedule string
	switch m.RepeatKind {
	case broadcast.RepeatOnce:
		schedule = "разово " + m.ScheduledAt.Format(dateTimeLayout)
	case broadcast.RepeatDaily:
		schedule = "ежедневно в " + m.ScheduledAt.Format(clockLayout)
	case broadcast.RepeatWeekly:
		names := []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}
		dayNames := make([]string, 0, len(m.RepeatDays))
		for _, d := range m.RepeatDays {
			if d >= 0 && d < len(names) {
				dayNames = append(dayNames, names[d])
			}
		}
		schedule = fmt.Sprintf("еженедельно (%s) в %s", strings.Join(dayNames, ","), m.ScheduledAt.Format(clockLayout))
	case broadcast.RepeatMonthly:
		schedule = fmt.Sprintf("ежемесячно %d-го числа в %s", m.ScheduledAt.Day(), m.ScheduledAt.Format(clockLayout))
	}

	preview := m.Text
	if len([]rune(preview)) > 40 {
		preview = string([]rune(preview)[:40]) + "…"
	}
	return fmt.Sprintf("#%d [%s] %s — %s", m.ID, status, schedule, preview)
}
