package notify

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/model"
	"academy/shared/reminders"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type fakeUsers map[int64]*model.User

func (u fakeUsers) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.New("not found")
}

func newNotifier(bot *fakeBot) *TelegramNotifier {
	logger := zerolog.New(io.Discard)
	users := fakeUsers{
		1: {ID: 1, TelegramChatID: 1001},
		2: {ID: 2, TelegramChatID: 1002},
		3: {ID: 3},
	}
	return NewTelegramNotifier(bot, users, time.UTC, &logger)
}

func TestSendReminder(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot)
	lesson := &model.ScheduledLesson{ID: 7, StudentID: 1, InstructorID: 2, Date: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), StartTime: "10:30"}

	require.NoError(t, n.SendReminder(context.Background(), 1, lesson))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(1001), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "04.05.2026 at 10:30")
}

func TestSendReminder_NoChatIsSkipped(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot)
	lesson := &model.ScheduledLesson{ID: 7, StudentID: 3, Date: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), StartTime: "10:30"}

	require.NoError(t, n.SendReminder(context.Background(), 3, lesson))
	assert.Empty(t, bot.sent)

	assert.Error(t, n.SendReminder(context.Background(), 99, lesson))
}

func TestNotifyCancellation_GoesToCounterpart(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot)
	lesson := &model.ScheduledLesson{
		ID: 7, StudentID: 1, InstructorID: 2,
		Date: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), StartTime: "10:00", EndTime: "11:00",
		CancellationReason: "sick",
	}

	require.NoError(t, n.NotifyCancellation(context.Background(), lesson, 1))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(1002), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "Reason: sick")
}

func TestSend_MapsTelegramErrors(t *testing.T) {
	apiErr := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	apiErr.RetryAfter = 5
	n := newNotifier(&fakeBot{err: apiErr})
	lesson := &model.ScheduledLesson{Date: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), StartTime: "10:00"}

	err := n.SendReminder(context.Background(), 1, lesson)
	tgErr, ok := reminders.IsTelegramError(err)
	require.True(t, ok)
	assert.Equal(t, 429, tgErr.Code)
	assert.Equal(t, 5, tgErr.RetryAfter)

	plain := errors.New("network down")
	n = newNotifier(&fakeBot{err: plain})
	assert.ErrorIs(t, n.SendReminder(context.Background(), 1, lesson), plain)
}
