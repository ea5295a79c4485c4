package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockReminderRepository implements ReminderRepository for testing.
type MockReminderRepository struct {
	mu        sync.Mutex
	reminders map[int64]*Reminder
	nextID    int64
}

func NewMockReminderRepository() *MockReminderRepository {
	return &MockReminderRepository{
		reminders: make(map[int64]*Reminder),
		nextID:    1,
	}
}

func (m *MockReminderRepository) CreateReminder(ctx context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID
	m.nextID++
	cp := *r
	m.reminders[r.ID] = &cp
	return nil
}

func (m *MockReminderRepository) UpdateReminder(ctx context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reminders[r.ID]; ok {
		cp := *r
		m.reminders[r.ID] = &cp
	}
	return nil
}

func (m *MockReminderRepository) GetReminderByKey(ctx context.Context, userID, lessonID int64, reminderType ReminderType) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reminders {
		if r.UserID == userID && r.LessonID == lessonID && r.ReminderType == reminderType {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockReminderRepository) CountPendingReminders(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.reminders {
		if r.Status == ReminderStatusPending {
			n++
		}
	}
	return n, nil
}

func (m *MockReminderRepository) DeleteOldReminders(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, r := range m.reminders {
		if r.Status != ReminderStatusPending && r.UpdatedAt.Before(before) {
			delete(m.reminders, id)
			count++
		}
	}
	return count, nil
}

func (m *MockReminderRepository) byStatus(status ReminderStatus) []Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Reminder
	for _, r := range m.reminders {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out
}

type testLesson struct {
	id     int64
	userID int64
	start  time.Time
	sent   bool
}

func (l *testLesson) GetID() int64            { return l.id }
func (l *testLesson) GetUserID() int64        { return l.userID }
func (l *testLesson) GetStartTime() time.Time { return l.start }
func (l *testLesson) IsReminderSent() bool    { return l.sent }

type testLessonStore struct {
	mu      sync.Mutex
	lessons []*testLesson
	marked  []int64
	within  time.Duration
}

func (s *testLessonStore) GetUpcomingLessons(ctx context.Context, within time.Duration) ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.within = within
	var out []Lesson
	for _, l := range s.lessons {
		out = append(out, l)
	}
	return out, nil
}

func (s *testLessonStore) MarkReminderSent(ctx context.Context, lessonID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, lessonID)
	for _, l := range s.lessons {
		if l.id == lessonID {
			l.sent = true
		}
	}
	return nil
}

type testSettings map[int64]*UserSettings

func (s testSettings) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	if us, ok := s[userID]; ok {
		return us, nil
	}
	return DefaultUserSettings(userID), nil
}

func (s testSettings) MaxReminderHoursBefore(ctx context.Context) (int, error) {
	longest := 0
	for _, us := range s {
		if us.RemindersEnabled && us.ReminderHoursBefore > longest {
			longest = us.ReminderHoursBefore
		}
	}
	return longest, nil
}

type testNotifier struct {
	mu    sync.Mutex
	calls []int64
	errs  []error
}

func (n *testNotifier) SendReminder(ctx context.Context, userID int64, lesson Lesson) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, lesson.GetID())
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		return err
	}
	return nil
}

func fastSenderConfig() ReminderSenderConfig {
	return ReminderSenderConfig{
		RateLimiter: RateLimiterConfig{Rate: 1000, Burst: 100},
		Retry:       RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}},
	}
}

func newTestService(store *testLessonStore, settings testSettings, notifier *testNotifier, repo *MockReminderRepository, now time.Time) *Service {
	metrics := NewMetrics(prometheus.NewRegistry(), "test")
	sender := NewReminderSender(notifier, repo, store, fastSenderConfig(), metrics, nil)
	svc := NewService(nil, store, settings, repo, sender, metrics, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_SendsDueReminderOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &testLessonStore{lessons: []*testLesson{
		{id: 1, userID: 10, start: now.Add(20 * time.Hour)},
		{id: 2, userID: 11, start: now.Add(30 * time.Hour)}, // not due yet
	}}
	notifier := &testNotifier{}
	repo := NewMockReminderRepository()
	svc := newTestService(store, testSettings{}, notifier, repo, now)

	assert.Equal(t, 1, svc.RunOnce(context.Background()))
	assert.Equal(t, []int64{1}, notifier.calls)
	assert.Equal(t, []int64{1}, store.marked)
	require.Len(t, repo.byStatus(ReminderStatusSent), 1)

	// Second pass: the lesson is flagged and nothing is resent.
	assert.Equal(t, 0, svc.RunOnce(context.Background()))
	assert.Len(t, notifier.calls, 1)
}

func TestService_RespectsUserSettings(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &testLessonStore{lessons: []*testLesson{
		{id: 1, userID: 10, start: now.Add(2 * time.Hour)},
		{id: 2, userID: 11, start: now.Add(5 * time.Hour)},
	}}
	settings := testSettings{
		10: {UserID: 10, RemindersEnabled: false, ReminderHoursBefore: 24},
		11: {UserID: 11, RemindersEnabled: true, ReminderHoursBefore: 3},
	}
	notifier := &testNotifier{}
	svc := newTestService(store, settings, notifier, NewMockReminderRepository(), now)

	assert.Equal(t, 0, svc.RunOnce(context.Background()))
	assert.Empty(t, notifier.calls)
}

func TestService_LookAheadCoversLongestUserSetting(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &testLessonStore{lessons: []*testLesson{
		{id: 1, userID: 10, start: now.Add(60 * time.Hour)},
	}}
	settings := testSettings{10: {UserID: 10, RemindersEnabled: true, ReminderHoursBefore: 72}}
	notifier := &testNotifier{}
	svc := newTestService(store, settings, notifier, NewMockReminderRepository(), now)

	assert.Equal(t, 1, svc.RunOnce(context.Background()))
	assert.Equal(t, 73*time.Hour, store.within)
	assert.Equal(t, []int64{1}, notifier.calls)

	// Without longer settings the default window applies.
	store = &testLessonStore{}
	svc = newTestService(store, testSettings{}, &testNotifier{}, NewMockReminderRepository(), now)
	svc.RunOnce(context.Background())
	assert.Equal(t, 25*time.Hour, store.within)
}

func TestService_CleanupKeepsPendingAndRecent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := NewMockReminderRepository()
	for i, r := range []Reminder{
		{UserID: 1, LessonID: 1, Status: ReminderStatusSent, UpdatedAt: now.Add(-10 * 24 * time.Hour)},
		{UserID: 1, LessonID: 2, Status: ReminderStatusFailed, UpdatedAt: now.Add(-8 * 24 * time.Hour)},
		{UserID: 1, LessonID: 3, Status: ReminderStatusSent, UpdatedAt: now.Add(-2 * 24 * time.Hour)},
		{UserID: 1, LessonID: 4, Status: ReminderStatusPending, UpdatedAt: now.Add(-30 * 24 * time.Hour)},
	} {
		r := r
		require.NoError(t, repo.CreateReminder(context.Background(), &r), i)
	}

	svc := newTestService(&testLessonStore{}, testSettings{}, &testNotifier{}, repo, now)
	deleted, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Len(t, repo.byStatus(ReminderStatusSent), 1)
	assert.Len(t, repo.byStatus(ReminderStatusPending), 1)

	// Retention never drops below the longest reminder window.
	repo = NewMockReminderRepository()
	old := Reminder{UserID: 1, LessonID: 5, Status: ReminderStatusSent, UpdatedAt: now.Add(-9 * 24 * time.Hour)}
	require.NoError(t, repo.CreateReminder(context.Background(), &old))
	long := testSettings{1: {UserID: 1, RemindersEnabled: true, ReminderHoursBefore: 240}}
	svc = newTestService(&testLessonStore{}, long, &testNotifier{}, repo, now)
	deleted, err = svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSender_BlockedUserFailsWithoutRetry(t *testing.T) {
	repo := NewMockReminderRepository()
	r := &Reminder{UserID: 1, LessonID: 5, ReminderType: ReminderTypeBeforeLesson, Status: ReminderStatusPending}
	require.NoError(t, repo.CreateReminder(context.Background(), r))

	notifier := &testNotifier{errs: []error{&TelegramError{Code: 403, Message: "Forbidden: bot was blocked by the user"}}}
	store := &testLessonStore{}
	sender := NewReminderSender(notifier, repo, store, fastSenderConfig(), nil, nil)

	require.NoError(t, sender.SendWithRetry(context.Background(), r, &testLesson{id: 5, userID: 1}))
	assert.Len(t, notifier.calls, 1)
	assert.Equal(t, ReminderStatusFailed, r.Status)
	assert.Equal(t, "user_blocked", r.LastError)
	assert.Empty(t, store.marked)
}

func TestSender_RetriesTransientErrors(t *testing.T) {
	repo := NewMockReminderRepository()
	r := &Reminder{UserID: 1, LessonID: 5, ReminderType: ReminderTypeBeforeLesson, Status: ReminderStatusPending}
	require.NoError(t, repo.CreateReminder(context.Background(), r))

	notifier := &testNotifier{errs: []error{errors.New("timeout")}}
	store := &testLessonStore{}
	sender := NewReminderSender(notifier, repo, store, fastSenderConfig(), nil, nil)

	require.NoError(t, sender.SendWithRetry(context.Background(), r, &testLesson{id: 5, userID: 1}))
	assert.Len(t, notifier.calls, 2)
	assert.Equal(t, ReminderStatusSent, r.Status)
	assert.Equal(t, 1, r.RetryCount)
	assert.Equal(t, []int64{5}, store.marked)
}

func TestSender_GivesUpAfterMaxRetries(t *testing.T) {
	repo := NewMockReminderRepository()
	r := &Reminder{UserID: 1, LessonID: 5, ReminderType: ReminderTypeBeforeLesson, Status: ReminderStatusPending}
	require.NoError(t, repo.CreateReminder(context.Background(), r))

	boom := errors.New("boom")
	notifier := &testNotifier{errs: []error{boom, boom, boom}}
	sender := NewReminderSender(notifier, repo, nil, fastSenderConfig(), nil, nil)

	require.NoError(t, sender.SendWithRetry(context.Background(), r, &testLesson{id: 5, userID: 1}))
	assert.Len(t, notifier.calls, 3)
	assert.Equal(t, ReminderStatusFailed, r.Status)
	assert.Equal(t, "max_retries_exceeded", r.LastError)
}

func TestIsTelegramError(t *testing.T) {
	wrapped := errors.Join(errors.New("send"), &TelegramError{Code: 429, RetryAfter: 3})
	tgErr, ok := IsTelegramError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 3, tgErr.RetryAfter)

	_, ok = IsTelegramError(errors.New("plain"))
	assert.False(t, ok)
}
