// internal/infra/telegram/handlers.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"training_bot/internal/app"
	"training_bot/internal/domain/training"
	idb "training_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterPlayerHandlers wires the player-facing commands and the inline
// button callbacks.
func RegisterPlayerHandlers(
	ctx context.Context,
	b *telebot.Bot,
	registrationService *app.RegistrationService,
	baseLogger *logrus.Entry,
) {
	b.Handle("/start", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":   "/start",
			"sender_id": c.Sender().ID,
		})
		logCtx.Info("Processing /start command")

		replyMarkup := &telebot.ReplyMarkup{ResizeKeyboard: true}
		btnRegister := replyMarkup.Data("⚽ Записаться", "register")
		btnRegisterGK := replyMarkup.Data("🧤 Записаться вратарём", "register_gk")
		btnSchedule := replyMarkup.Data("📅 Расписание", "schedule")
		btnMine := replyMarkup.Data("📝 Мои записи", "my_regs")
		replyMarkup.Inline(
			replyMarkup.Row(btnRegister, btnRegisterGK),
			replyMarkup.Row(btnSchedule, btnMine),
		)

		text := fmt.Sprintf("Привет, %s! Я бот для записи на тренировки.\nВыберите действие или используйте /commands для списка команд.", c.Sender().FirstName)
		return c.Send(text, &telebot.SendOptions{ReplyMarkup: replyMarkup})
	})

	b.Handle("/commands", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("Доступные команды:\n\n")
		helpText.WriteString("`/start`\n - Главное меню с кнопками.\n\n")
		helpText.WriteString("`/schedule`\n - Показать ближайшие тренировки.\n\n")
		helpText.WriteString("`/my`\n - Показать ваши записи с возможностью отмены.\n\n")
		helpText.WriteString("`/participants`\n - Показать состав на ближайшую тренировку.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/schedule", func(c telebot.Context) error {
		return sendSchedule(ctx, c, registrationService, baseLogger)
	})

	b.Handle("/my", func(c telebot.Context) error {
		return sendMyRegistrations(ctx, c, registrationService, baseLogger)
	})

	b.Handle("/participants", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":   "/participants",
			"sender_id": c.Sender().ID,
		})

		t, regs, err := registrationService.Roster(ctx)
		if err != nil {
			if err == app.ErrNoUpcomingTraining {
				return c.Send("Ближайших тренировок пока нет.")
			}
			logCtx.WithError(err).Error("Failed to load roster")
			return c.Send("Произошла ошибка при получении состава. Пожалуйста, попробуйте позже.")
		}

		var text strings.Builder
		text.WriteString(fmt.Sprintf("Состав на тренировку %s (%d чел.):\n", t.StartsAt.Format("02.01.2006 15:04"), len(regs)))
		for i, reg := range regs {
			line := fmt.Sprintf("%d. %s", i+1, registrationName(reg))
			if reg.Goalkeeper {
				line += " 🧤"
			}
			text.WriteString(line + "\n")
		}
		if len(regs) == 0 {
			text.WriteString("Пока никто не записался.")
		}
		return c.Send(text.String())
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":   "callback",
			"sender_id": c.Sender().ID,
			"data":      data,
		})

		switch {
		case data == "register":
			return handleRegister(ctx, c, registrationService, logCtx, false)
		case data == "register_gk":
			return handleRegister(ctx, c, registrationService, logCtx, true)
		case data == "schedule":
			if err := c.Respond(); err != nil {
				return err
			}
			return sendSchedule(ctx, c, registrationService, baseLogger)
		case data == "my_regs":
			if err := c.Respond(); err != nil {
				return err
			}
			return sendMyRegistrations(ctx, c, registrationService, baseLogger)
		case strings.HasPrefix(data, "cancel_reg_"):
			return handleCancel(ctx, c, registrationService, logCtx, strings.TrimPrefix(data, "cancel_reg_"))
		}

		logCtx.Warn("Unhandled callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Неизвестное действие."})
	})
}

// senderDisplayName builds the roster name from the Telegram profile.
func senderDisplayName(u *telebot.User) string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// registrationName prefers the profile name, then the username.
func registrationName(reg *training.Registration) string {
	if reg.DisplayName.Valid && reg.DisplayName.String != "" {
		return reg.DisplayName.String
	}
	if reg.Username != "" {
		return "@" + reg.Username
	}
	return "Без имени"
}

func handleRegister(ctx context.Context, c telebot.Context, registrationService *app.RegistrationService, logCtx *logrus.Entry, goalkeeper bool) error {
	_, t, err := registrationService.RegisterForNearest(ctx, c.Sender().ID, c.Sender().Username, senderDisplayName(c.Sender()), goalkeeper)
	if err != nil {
		switch err {
		case app.ErrNoUpcomingTraining:
			return c.Respond(&telebot.CallbackResponse{Text: "Ближайших тренировок пока нет."})
		case app.ErrAlreadyRegistered:
			return c.Respond(&telebot.CallbackResponse{Text: "Вы уже записаны на эту тренировку."})
		case app.ErrTrainingFull:
			return c.Respond(&telebot.CallbackResponse{Text: "Все места уже заняты."})
		default:
			logCtx.WithError(err).Error("Failed to register player")
			return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка. Попробуйте позже."})
		}
	}

	if err := c.Respond(&telebot.CallbackResponse{Text: "Вы записаны!"}); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("✅ Вы записаны на тренировку %s.", t.StartsAt.Format("02.01.2006 15:04")))
}

func handleCancel(ctx context.Context, c telebot.Context, registrationService *app.RegistrationService, logCtx *logrus.Entry, idStr string) error {
	registrationID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		logCtx.WithError(err).Warn("Invalid registration ID in callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}

	err = registrationService.Cancel(ctx, c.Sender().ID, registrationID)
	if err != nil {
		switch err {
		case idb.ErrRegistrationNotFound:
			return c.Respond(&telebot.CallbackResponse{Text: "Запись уже отменена."})
		case app.ErrRegistrationNotOwned:
			logCtx.Warn("Attempt to cancel another player's registration")
			return c.Respond(&telebot.CallbackResponse{Text: "Это не ваша запись."})
		default:
			logCtx.WithError(err).Error("Failed to cancel registration")
			return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка. Попробуйте позже."})
		}
	}

	if err := c.Respond(&telebot.CallbackResponse{Text: "Запись отменена."}); err != nil {
		return err
	}
	return c.Send("❌ Ваша запись отменена.")
}

func sendSchedule(ctx context.Context, c telebot.Context, registrationService *app.RegistrationService, baseLogger *logrus.Entry) error {
	trainings, err := registrationService.UpcomingTrainings(ctx)
	if err != nil {
		baseLogger.WithError(err).Error("Failed to list upcoming trainings")
		return c.Send("Произошла ошибка при получении расписания. Пожалуйста, попробуйте позже.")
	}
	if len(trainings) == 0 {
		return c.Send("Ближайших тренировок пока нет.")
	}

	var text strings.Builder
	text.WriteString("Ближайшие тренировки:\n\n")
	for _, tc := range trainings {
		text.WriteString(fmt.Sprintf("• %s — записано %d из %d\n",
			tc.Training.StartsAt.Format("02.01.2006 15:04"), tc.Registered, tc.Training.MaxParticipants))
	}
	return c.Send(text.String())
}

func sendMyRegistrations(ctx context.Context, c telebot.Context, registrationService *app.RegistrationService, baseLogger *logrus.Entry) error {
	regs, err := registrationService.MyRegistrations(ctx, c.Sender().ID)
	if err != nil {
		baseLogger.WithError(err).Error("Failed to list player registrations")
		return c.Send("Произошла ошибка при получении ваших записей. Пожалуйста, попробуйте позже.")
	}
	if len(regs) == 0 {
		return c.Send("У вас нет записей на ближайшие тренировки.")
	}

	for _, ur := range regs {
		replyMarkup := &telebot.ReplyMarkup{ResizeKeyboard: true}
		btnCancel := replyMarkup.Data("Отменить запись", fmt.Sprintf("cancel_reg_%d", ur.Registration.ID))
		replyMarkup.Inline(replyMarkup.Row(btnCancel))

		text := fmt.Sprintf("Тренировка %s", ur.Training.StartsAt.Format("02.01.2006 15:04"))
		if ur.Registration.Goalkeeper {
			text += " (вратарь)"
		}
		if err := c.Send(text, &telebot.SendOptions{ReplyMarkup: replyMarkup}); err != nil {
			return err
		}
	}
	return nil
}
