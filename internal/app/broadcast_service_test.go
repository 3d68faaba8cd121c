// internal/app/broadcast_service_test.go
package app

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"training_bot/internal/domain/broadcast"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannelID = int64(-1001234567890)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newBroadcastFixture() (*BroadcastService, *fakeBroadcastRepo, *fakeTelegramClient) {
	repo := newFakeBroadcastRepo()
	client := newFakeTelegramClient()
	svc := NewBroadcastService(repo, client, newTestLogger(), BroadcastConfig{
		ChannelID:          testChannelID,
		DailyResendGuard:   23 * time.Hour,
		WeeklyResendGuard:  6 * 24 * time.Hour,
		MonthlyResendGuard: 27 * 24 * time.Hour,
	})
	return svc, repo, client
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBroadcastService_LazyInitThenSend(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	// Daily message at 18:00, created without a computed fire time.
	m := repo.add(&broadcast.Message{
		Text:        "Тренировка сегодня!",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		IsActive:    true,
	})

	// First tick at 17:00: the fire time gets computed, nothing is sent.
	svc.now = fixedNow(time.Date(2025, time.June, 10, 17, 0, 0, 0, time.UTC))
	require.NoError(t, svc.RunTick(context.Background()))
	assert.Empty(t, client.sent)

	stored := repo.messages[m.ID]
	require.True(t, stored.NextFireAt.Valid)
	assert.Equal(t, time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC), stored.NextFireAt.Time)

	// Second tick just past 18:00: the message goes out and reschedules.
	sendTime := time.Date(2025, time.June, 10, 18, 0, 30, 0, time.UTC)
	svc.now = fixedNow(sendTime)
	require.NoError(t, svc.RunTick(context.Background()))

	require.Len(t, client.sent, 1)
	assert.Equal(t, testChannelID, client.sent[0].ChatID)
	assert.Equal(t, "Тренировка сегодня!", client.sent[0].Text)

	stored = repo.messages[m.ID]
	require.True(t, stored.LastSentAt.Valid)
	assert.Equal(t, sendTime, stored.LastSentAt.Time)
	require.True(t, stored.NextFireAt.Valid)
	assert.Equal(t, time.Date(2025, time.June, 11, 18, 0, 0, 0, time.UTC), stored.NextFireAt.Time)
	assert.True(t, stored.IsActive)
}

func TestBroadcastService_OnceSendsExactlyOnce(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	m := repo.add(&broadcast.Message{
		Text:        "Собрание в субботу",
		RepeatKind:  broadcast.RepeatOnce,
		ScheduledAt: time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC),
		NextFireAt:  sql.NullTime{Time: time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC), Valid: true},
		IsActive:    true,
	})

	svc.now = fixedNow(time.Date(2025, time.June, 14, 12, 1, 0, 0, time.UTC))
	require.NoError(t, svc.RunTick(context.Background()))
	require.Len(t, client.sent, 1)

	stored := repo.messages[m.ID]
	assert.False(t, stored.IsActive)
	assert.False(t, stored.NextFireAt.Valid)

	// Further ticks see an inactive message and do nothing.
	svc.now = fixedNow(time.Date(2025, time.June, 14, 12, 5, 0, 0, time.UTC))
	require.NoError(t, svc.RunTick(context.Background()))
	assert.Len(t, client.sent, 1)
}

func TestBroadcastService_ExpiredOnceIsNotScheduled(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	m := repo.add(&broadcast.Message{
		Text:        "Уже прошло",
		RepeatKind:  broadcast.RepeatOnce,
		ScheduledAt: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
		IsActive:    true,
	})

	svc.now = fixedNow(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, svc.RunTick(context.Background()))

	assert.Empty(t, client.sent)
	// Left untouched so an admin edit can still revive it.
	assert.False(t, repo.messages[m.ID].NextFireAt.Valid)
	assert.True(t, repo.messages[m.ID].IsActive)
}

func TestBroadcastService_ResendGuard(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	now := time.Date(2025, time.June, 10, 18, 1, 0, 0, time.UTC)
	m := repo.add(&broadcast.Message{
		Text:        "Ежедневное",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
		IsActive:    true,
	})

	t.Run("recent send blocks a due message", func(t *testing.T) {
		repo.messages[m.ID].LastSentAt = sql.NullTime{Time: now.Add(-22 * time.Hour), Valid: true}
		svc.now = fixedNow(now)
		require.NoError(t, svc.RunTick(context.Background()))
		assert.Empty(t, client.sent)
	})

	t.Run("send older than the guard goes through", func(t *testing.T) {
		repo.messages[m.ID].LastSentAt = sql.NullTime{Time: now.Add(-23 * time.Hour), Valid: true}
		svc.now = fixedNow(now)
		require.NoError(t, svc.RunTick(context.Background()))
		assert.Len(t, client.sent, 1)
	})
}

func TestBroadcastService_TransientFailureRetriesNextTick(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	now := time.Date(2025, time.June, 10, 18, 1, 0, 0, time.UTC)
	m := repo.add(&broadcast.Message{
		Text:        "Ежедневное",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
		IsActive:    true,
	})

	client.failWith = transientError()
	svc.now = fixedNow(now)
	require.NoError(t, svc.RunTick(context.Background()))

	// State untouched: still due, never marked sent.
	stored := repo.messages[m.ID]
	assert.False(t, stored.LastSentAt.Valid)
	assert.Equal(t, now.Add(-time.Minute), stored.NextFireAt.Time)

	client.failWith = nil
	svc.now = fixedNow(now.Add(time.Minute))
	require.NoError(t, svc.RunTick(context.Background()))
	require.Len(t, client.sent, 1)
	assert.True(t, repo.messages[m.ID].LastSentAt.Valid)
}

func TestBroadcastService_PerMessageIsolation(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	now := time.Date(2025, time.June, 10, 18, 1, 0, 0, time.UTC)
	due := sql.NullTime{Time: now.Add(-time.Minute), Valid: true}
	first := repo.add(&broadcast.Message{
		Text:        "Первое",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  due,
		IsActive:    true,
	})
	second := repo.add(&broadcast.Message{
		Text:        "Второе",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  due,
		IsActive:    true,
	})

	// Only the first send fails; the tick must still deliver the second.
	client.failFirstN = 1
	svc.now = fixedNow(now)
	require.NoError(t, svc.RunTick(context.Background()))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "Второе", client.sent[0].Text)
	assert.False(t, repo.messages[first.ID].LastSentAt.Valid)
	assert.True(t, repo.messages[second.ID].LastSentAt.Valid)
}

func TestBroadcastService_NoChannelConfigured(t *testing.T) {
	repo := newFakeBroadcastRepo()
	client := newFakeTelegramClient()
	svc := NewBroadcastService(repo, client, newTestLogger(), BroadcastConfig{ChannelID: 0})

	repo.add(&broadcast.Message{
		Text:        "Некуда слать",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  sql.NullTime{Time: time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC), Valid: true},
		IsActive:    true,
	})

	require.NoError(t, svc.RunTick(context.Background()))
	assert.Empty(t, client.sent)

	err := svc.ForceSend(context.Background(), 1)
	assert.ErrorIs(t, err, ErrChannelNotConfigured)
}

func TestBroadcastService_ForceSendRecordsDelivery(t *testing.T) {
	svc, repo, client := newBroadcastFixture()

	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	m := repo.add(&broadcast.Message{
		Text:        "Срочное",
		RepeatKind:  broadcast.RepeatDaily,
		ScheduledAt: time.Date(2000, time.January, 1, 18, 0, 0, 0, time.UTC),
		NextFireAt:  sql.NullTime{Time: time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC), Valid: true},
		IsActive:    true,
	})

	svc.now = fixedNow(now)
	require.NoError(t, svc.ForceSend(context.Background(), m.ID))
	require.Len(t, client.sent, 1)

	stored := repo.messages[m.ID]
	require.True(t, stored.LastSentAt.Valid)
	assert.Equal(t, now, stored.LastSentAt.Time)
	// Rescheduled to the next regular occurrence.
	require.True(t, stored.NextFireAt.Valid)
	assert.Equal(t, time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC), stored.NextFireAt.Time)

	// The regular tick at 18:01 is inside the daily guard and stays quiet.
	svc.now = fixedNow(time.Date(2025, time.June, 10, 18, 1, 0, 0, time.UTC))
	require.NoError(t, svc.RunTick(context.Background()))
	assert.Len(t, client.sent, 1)
}
