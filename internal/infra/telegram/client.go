// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"net"
	"strings"

	domainTelegram "training_bot/internal/domain/telegram"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelebotAdapter wraps the telebot instance behind the domain Client
// interface. Outgoing messages go through a rate limiter tuned under the
// Bot API's ~30 messages/second ceiling.
type TelebotAdapter struct {
	bot     *telebot.Bot
	limiter *rate.Limiter
}

func NewTelebotAdapter(bot *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{
		bot:     bot,
		limiter: rate.NewLimiter(25, 25),
	}
}

func (a *TelebotAdapter) SendMessage(ctx context.Context, chatID int64, text string, options *telebot.SendOptions) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return &domainTelegram.DeliveryError{
			Kind: domainTelegram.KindTimedOut,
			Err:  err,
		}
	}

	var err error
	if options != nil {
		_, err = a.bot.Send(telebot.ChatID(chatID), text, options)
	} else {
		_, err = a.bot.Send(telebot.ChatID(chatID), text)
	}
	if err != nil {
		return ClassifyError(err)
	}
	return nil
}

// ClassifyError maps raw telebot and transport errors onto the domain error
// kinds the loops act on.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrNotStartedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated):
		return &domainTelegram.DeliveryError{
			Kind:   domainTelegram.KindRecipientUnreachable,
			Reason: strings.ToLower(err.Error()),
			Err:    err,
		}
	case errors.Is(err, telebot.ErrChatNotFound):
		return &domainTelegram.DeliveryError{
			Kind:   domainTelegram.KindRequestRejected,
			Reason: domainTelegram.ReasonChatNotFound,
			Err:    err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &domainTelegram.DeliveryError{
			Kind: domainTelegram.KindTimedOut,
			Err:  err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		kind := domainTelegram.KindNetworkUnavailable
		if netErr.Timeout() {
			kind = domainTelegram.KindTimedOut
		}
		return &domainTelegram.DeliveryError{Kind: kind, Err: err}
	}

	var tbErr *telebot.Error
	if errors.As(err, &tbErr) {
		reason := strings.ToLower(tbErr.Description)
		if strings.Contains(reason, "chat not found") {
			reason = domainTelegram.ReasonChatNotFound
		}
		return &domainTelegram.DeliveryError{
			Kind:   domainTelegram.KindRequestRejected,
			Reason: reason,
			Err:    err,
		}
	}

	return &domainTelegram.DeliveryError{
		Kind: domainTelegram.KindUnknown,
		Err:  err,
	}
}
