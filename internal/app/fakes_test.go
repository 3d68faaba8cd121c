// internal/app/fakes_test.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"training_bot/internal/domain/broadcast"
	domainTelegram "training_bot/internal/domain/telegram"
	"training_bot/internal/domain/training"
	idb "training_bot/internal/infra/database"

	"gopkg.in/telebot.v3"
)

// --- broadcast repository fake ---

type fakeBroadcastRepo struct {
	messages map[int64]*broadcast.Message
	nextID   int64
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{messages: make(map[int64]*broadcast.Message), nextID: 1}
}

func (r *fakeBroadcastRepo) add(m *broadcast.Message) *broadcast.Message {
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.messages[m.ID] = m
	return m
}

func (r *fakeBroadcastRepo) Create(_ context.Context, m *broadcast.Message) error {
	r.add(m)
	return nil
}

func (r *fakeBroadcastRepo) GetByID(_ context.Context, id int64) (*broadcast.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, idb.ErrBroadcastMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeBroadcastRepo) ListActive(_ context.Context) ([]*broadcast.Message, error) {
	out := make([]*broadcast.Message, 0)
	for _, m := range r.messages {
		if m.IsActive {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBroadcastRepo) ListAll(_ context.Context) ([]*broadcast.Message, error) {
	out := make([]*broadcast.Message, 0)
	for _, m := range r.messages {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBroadcastRepo) Update(_ context.Context, m *broadcast.Message) error {
	if _, ok := r.messages[m.ID]; !ok {
		return idb.ErrBroadcastMessageNotFound
	}
	copied := *m
	r.messages[m.ID] = &copied
	return nil
}

func (r *fakeBroadcastRepo) SetNextFireAt(_ context.Context, id int64, next time.Time) error {
	m, ok := r.messages[id]
	if !ok {
		return idb.ErrBroadcastMessageNotFound
	}
	m.NextFireAt = sql.NullTime{Time: next, Valid: true}
	return nil
}

func (r *fakeBroadcastRepo) MarkSent(_ context.Context, id int64, sentAt time.Time, nextFireAt sql.NullTime, active bool) error {
	m, ok := r.messages[id]
	if !ok {
		return idb.ErrBroadcastMessageNotFound
	}
	m.LastSentAt = sql.NullTime{Time: sentAt, Valid: true}
	m.NextFireAt = nextFireAt
	m.IsActive = active
	return nil
}

func (r *fakeBroadcastRepo) Deactivate(_ context.Context, id int64) error {
	m, ok := r.messages[id]
	if !ok {
		return idb.ErrBroadcastMessageNotFound
	}
	m.IsActive = false
	return nil
}

func (r *fakeBroadcastRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.messages[id]; !ok {
		return idb.ErrBroadcastMessageNotFound
	}
	delete(r.messages, id)
	return nil
}

// --- training repository fake ---

type fakeTrainingRepo struct {
	trainings     map[int64]*training.Training
	registrations map[int64]*training.Registration
	nextID        int64
}

func newFakeTrainingRepo() *fakeTrainingRepo {
	return &fakeTrainingRepo{
		trainings:     make(map[int64]*training.Training),
		registrations: make(map[int64]*training.Registration),
		nextID:        1,
	}
}

func (r *fakeTrainingRepo) addTraining(t *training.Training) *training.Training {
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	}
	r.trainings[t.ID] = t
	return t
}

func (r *fakeTrainingRepo) addRegistration(reg *training.Registration) *training.Registration {
	if reg.ID == 0 {
		reg.ID = r.nextID
		r.nextID++
	}
	r.registrations[reg.ID] = reg
	return reg
}

func (r *fakeTrainingRepo) CreateTraining(_ context.Context, t *training.Training) error {
	r.addTraining(t)
	return nil
}

func (r *fakeTrainingRepo) GetTrainingByID(_ context.Context, id int64) (*training.Training, error) {
	t, ok := r.trainings[id]
	if !ok {
		return nil, idb.ErrTrainingNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTrainingRepo) ListUpcomingTrainings(_ context.Context, after time.Time) ([]*training.Training, error) {
	out := make([]*training.Training, 0)
	for _, t := range r.trainings {
		if t.StartsAt.After(after) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *fakeTrainingRepo) ListTrainingsStartedBetween(_ context.Context, from, to time.Time) ([]*training.Training, error) {
	out := make([]*training.Training, 0)
	for _, t := range r.trainings {
		if !t.StartsAt.Before(from) && !t.StartsAt.After(to) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *fakeTrainingRepo) DeleteTraining(_ context.Context, id int64) error {
	if _, ok := r.trainings[id]; !ok {
		return idb.ErrTrainingNotFound
	}
	delete(r.trainings, id)
	for regID, reg := range r.registrations {
		if reg.TrainingID == id {
			delete(r.registrations, regID)
		}
	}
	return nil
}

func (r *fakeTrainingRepo) CreateRegistration(_ context.Context, reg *training.Registration) error {
	for _, existing := range r.registrations {
		if existing.TrainingID == reg.TrainingID && existing.UserID == reg.UserID {
			return idb.ErrDuplicateRegistration
		}
	}
	r.addRegistration(reg)
	return nil
}

func (r *fakeTrainingRepo) GetRegistrationByID(_ context.Context, id int64) (*training.Registration, error) {
	reg, ok := r.registrations[id]
	if !ok {
		return nil, idb.ErrRegistrationNotFound
	}
	copied := *reg
	return &copied, nil
}

func (r *fakeTrainingRepo) GetRegistration(_ context.Context, trainingID, userID int64) (*training.Registration, error) {
	for _, reg := range r.registrations {
		if reg.TrainingID == trainingID && reg.UserID == userID {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, idb.ErrRegistrationNotFound
}

func (r *fakeTrainingRepo) ListRegistrationsByTraining(_ context.Context, trainingID int64) ([]*training.Registration, error) {
	out := make([]*training.Registration, 0)
	for _, reg := range r.registrations {
		if reg.TrainingID == trainingID {
			copied := *reg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTrainingRepo) ListRegistrationsByUser(_ context.Context, userID int64, after time.Time) ([]*training.Registration, error) {
	out := make([]*training.Registration, 0)
	for _, reg := range r.registrations {
		if reg.UserID != userID {
			continue
		}
		t, ok := r.trainings[reg.TrainingID]
		if !ok || !t.StartsAt.After(after) {
			continue
		}
		copied := *reg
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTrainingRepo) CountRegistrations(_ context.Context, trainingID int64) (int, error) {
	count := 0
	for _, reg := range r.registrations {
		if reg.TrainingID == trainingID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTrainingRepo) ListUnpaidRegistrations(_ context.Context, trainingID int64) ([]*training.Registration, error) {
	out := make([]*training.Registration, 0)
	for _, reg := range r.registrations {
		if reg.TrainingID == trainingID && !reg.Paid && !reg.Goalkeeper {
			copied := *reg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTrainingRepo) SetLastPaymentReminder(_ context.Context, registrationID int64, at time.Time) error {
	reg, ok := r.registrations[registrationID]
	if !ok {
		return idb.ErrRegistrationNotFound
	}
	reg.LastPaymentReminder = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *fakeTrainingRepo) MarkPaid(_ context.Context, registrationID int64) error {
	reg, ok := r.registrations[registrationID]
	if !ok {
		return idb.ErrRegistrationNotFound
	}
	reg.Paid = true
	return nil
}

func (r *fakeTrainingRepo) DeleteRegistration(_ context.Context, id int64) error {
	if _, ok := r.registrations[id]; !ok {
		return idb.ErrRegistrationNotFound
	}
	delete(r.registrations, id)
	return nil
}

// --- telegram client fake ---

type sentMessage struct {
	ChatID  int64
	Text    string
	Options *telebot.SendOptions
}

// fakeTelegramClient records outgoing messages and can be scripted to fail:
// either always, or per chat ID.
type fakeTelegramClient struct {
	sent        []sentMessage
	failWith    error
	failFirstN  int // fail this many sends before succeeding
	failPerChat map[int64]error
}

func newFakeTelegramClient() *fakeTelegramClient {
	return &fakeTelegramClient{failPerChat: make(map[int64]error)}
}

func (c *fakeTelegramClient) SendMessage(_ context.Context, chatID int64, text string, options *telebot.SendOptions) error {
	if c.failWith != nil {
		return c.failWith
	}
	if c.failFirstN > 0 {
		c.failFirstN--
		return transientError()
	}
	if err, ok := c.failPerChat[chatID]; ok {
		return err
	}
	c.sent = append(c.sent, sentMessage{ChatID: chatID, Text: text, Options: options})
	return nil
}

func transientError() error {
	return &domainTelegram.DeliveryError{
		Kind: domainTelegram.KindNetworkUnavailable,
		Err:  fmt.Errorf("connection refused"),
	}
}

func terminalError() error {
	return &domainTelegram.DeliveryError{
		Kind: domainTelegram.KindRecipientUnreachable,
		Err:  fmt.Errorf("bot was blocked by the user"),
	}
}
