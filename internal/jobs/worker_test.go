package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Claim(ctx context.Context, workerID string) (*Job, error) {
	args := m.Called(ctx, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *MockQueue) MarkDone(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockQueue) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *MockQueue) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return m.Called(ctx, id, attempts, runAt, errMsg).Error(0)
}

type MockReminderSource struct {
	mock.Mock
}

func (m *MockReminderSource) LoadReminder(ctx context.Context, planID, userID uint64) (*Reminder, error) {
	args := m.Called(ctx, planID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Reminder), args.Error(1)
}

var workerNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestWorker() (*Worker, *MockQueue, *MockReminderSource) {
	q := new(MockQueue)
	src := new(MockReminderSource)
	w := &Worker{
		ID:        "worker-test",
		Queue:     q,
		Reminders: src,
		Logger:    zap.NewNop(),
		now:       func() time.Time { return workerNow },
	}
	return w, q, src
}

func reminderJob() *Job {
	return &Job{
		ID:          11,
		UserID:      3,
		Type:        TypePlanReminder,
		Payload:     []byte(`{"plan_id":7}`),
		RunAt:       workerNow,
		Attempts:    0,
		MaxAttempts: 8,
	}
}

func TestHandleReminder(t *testing.T) {
	date := workerNow
	tests := []struct {
		name  string
		job   func() *Job
		setup func(*MockQueue, *MockReminderSource)
	}{
		{
			name: "dispatched",
			job:  reminderJob,
			setup: func(q *MockQueue, src *MockReminderSource) {
				src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).
					Return(&Reminder{PlanID: 7, UserID: 3, Date: &date, PlaceName: "Cafe", Tags: []string{"food"}}, nil).Once()
				q.On("MarkDone", mock.Anything, uint64(11)).Return(nil).Once()
			},
		},
		{
			name: "plan moved to another date",
			job:  reminderJob,
			setup: func(q *MockQueue, src *MockReminderSource) {
				moved := workerNow.Add(-72 * time.Hour)
				src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).
					Return(&Reminder{PlanID: 7, UserID: 3, Date: &moved, PlaceName: "Cafe"}, nil).Once()
				q.On("MarkDone", mock.Anything, uint64(11)).Return(nil).Once()
			},
		},
		{
			name: "plan gone",
			job:  reminderJob,
			setup: func(q *MockQueue, src *MockReminderSource) {
				src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).Return(nil, nil).Once()
				q.On("MarkDone", mock.Anything, uint64(11)).Return(nil).Once()
			},
		},
		{
			name: "read error retries with backoff",
			job:  reminderJob,
			setup: func(q *MockQueue, src *MockReminderSource) {
				src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).Return(nil, errors.New("conn reset")).Once()
				q.On("RetryLater", mock.Anything, uint64(11), 1, workerNow.Add(2*time.Second), "db read error").Return(nil).Once()
			},
		},
		{
			name: "read error on last attempt fails",
			job: func() *Job {
				j := reminderJob()
				j.Attempts = 7
				return j
			},
			setup: func(q *MockQueue, src *MockReminderSource) {
				src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).Return(nil, errors.New("conn reset")).Once()
				q.On("MarkFailed", mock.Anything, uint64(11), "db read error").Return(nil).Once()
			},
		},
		{
			name: "bad payload",
			job: func() *Job {
				j := reminderJob()
				j.Payload = []byte(`{`)
				return j
			},
			setup: func(q *MockQueue, src *MockReminderSource) {
				q.On("MarkFailed", mock.Anything, uint64(11), "bad payload").Return(nil).Once()
			},
		},
		{
			name: "unknown type",
			job: func() *Job {
				j := reminderJob()
				j.Type = "SOMETHING_ELSE"
				return j
			},
			setup: func(q *MockQueue, src *MockReminderSource) {
				q.On("MarkFailed", mock.Anything, uint64(11), "unknown job type").Return(nil).Once()
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, q, src := newTestWorker()
			tc.setup(q, src)

			w.handle(context.Background(), tc.job())

			q.AssertExpectations(t)
			src.AssertExpectations(t)
		})
	}
}

func TestHandleReminderAnnouncesOnlyCurrentDate(t *testing.T) {
	w, q, src := newTestWorker()
	core, logs := observer.New(zapcore.InfoLevel)
	w.Logger = zap.New(core)

	current := workerNow
	moved := workerNow.Add(-72 * time.Hour)
	src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).
		Return(&Reminder{PlanID: 7, UserID: 3, Date: &moved}, nil).Once()
	src.On("LoadReminder", mock.Anything, uint64(7), uint64(3)).
		Return(&Reminder{PlanID: 7, UserID: 3, Date: &current}, nil).Once()
	q.On("MarkDone", mock.Anything, uint64(11)).Return(nil).Twice()

	w.handle(context.Background(), reminderJob())
	assert.Zero(t, logs.FilterMessage("plan reminder").Len())
	assert.Equal(t, 1, logs.FilterMessage("stale plan reminder skipped").Len())

	w.handle(context.Background(), reminderJob())
	assert.Equal(t, 1, logs.FilterMessage("plan reminder").Len())
	q.AssertExpectations(t)
}

func TestRetryBackoffIsCapped(t *testing.T) {
	w, q, _ := newTestWorker()
	j := reminderJob()
	j.Attempts = 11
	j.MaxAttempts = 20

	q.On("RetryLater", mock.Anything, uint64(11), 12, workerNow.Add(600*time.Second), "boom").Return(nil).Once()
	w.retry(context.Background(), j, "boom")
	q.AssertExpectations(t)
}

func TestRunStopsOnCancel(t *testing.T) {
	w, q, _ := newTestWorker()
	w.Interval = time.Millisecond
	q.On("Claim", mock.Anything, "worker-test").Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.True(t, len(q.Calls) > 0)
}
