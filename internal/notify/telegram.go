package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"academy/internal/model"
	"academy/shared/reminders"
)

// TelegramSender is the part of tgbotapi.BotAPI the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserLookup resolves the Telegram chat of a user.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// TelegramNotifier delivers lesson reminders and cancellation notices to linked chats.
type TelegramNotifier struct {
	bot    TelegramSender
	users  UserLookup
	loc    *time.Location
	logger *zerolog.Logger
}

// NewBotAPI connects to Telegram with the bot token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func NewTelegramNotifier(bot TelegramSender, users UserLookup, loc *time.Location, logger *zerolog.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.Local
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &TelegramNotifier{bot: bot, users: users, loc: loc, logger: &l}
}

// SendReminder implements reminders.Notifier. Users without a linked chat are skipped.
func (n *TelegramNotifier) SendReminder(ctx context.Context, userID int64, lesson reminders.Lesson) error {
	start := lesson.GetStartTime().In(n.loc)
	text := fmt.Sprintf("Reminder: your lesson starts on %s at %s.",
		start.Format("02.01.2006"), start.Format("15:04"))
	return n.send(ctx, userID, text)
}

// NotifyCancellation tells the other participant that the lesson was cancelled.
func (n *TelegramNotifier) NotifyCancellation(ctx context.Context, lesson *model.ScheduledLesson, cancelledBy int64) error {
	text := fmt.Sprintf("Your lesson on %s %s-%s was cancelled.",
		lesson.Date.Format("02.01.2006"), lesson.StartTime, lesson.EndTime)
	if lesson.CancellationReason != "" {
		text += " Reason: " + lesson.CancellationReason
	}
	return n.send(ctx, lesson.Counterpart(cancelledBy), text)
}

func (n *TelegramNotifier) send(ctx context.Context, userID int64, text string) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.TelegramChatID == 0 {
		n.logger.Debug().Int64("user_id", userID).Msg("No telegram chat linked, skipping")
		return nil
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(user.TelegramChatID, text)); err != nil {
		return toTelegramError(err)
	}
	return nil
}

// toTelegramError maps Bot API failures so the reminder sender can react to the code.
func toTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &reminders.TelegramError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
		}
	}
	return err
}
