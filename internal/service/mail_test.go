package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitwise74/smart-librarian/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
}

func (m *flakyMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp unavailable")
	}

	m.sent = append(m.sent, to)
	return nil
}

func (m *flakyMailer) snapshot() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls, append([]string(nil), m.sent...)
}

func newTestQueue(m Mailer, size, retries int) *MailQueue {
	q := NewMailQueue(m, size, 1, retries)
	q.backoff = 0

	return q
}

func TestMailQueueDelivers(t *testing.T) {
	m := &flakyMailer{}
	q := newTestQueue(m, 8, 0)
	q.StartWorkerPool()

	require.NoError(t, q.Enqueue("a@example.com", "s", "<p>a</p>"))
	require.NoError(t, q.Enqueue("b@example.com", "s", "<p>b</p>"))

	require.NoError(t, q.Stop(context.Background()))

	_, sent := m.snapshot()
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, sent)
	assert.Zero(t, q.Pending())
}

func TestMailQueueRetries(t *testing.T) {
	m := &flakyMailer{failures: 2}
	q := newTestQueue(m, 1, 3)
	q.StartWorkerPool()

	require.NoError(t, q.Enqueue("a@example.com", "s", "b"))
	require.NoError(t, q.Stop(context.Background()))

	calls, sent := m.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"a@example.com"}, sent)
}

func TestMailQueueGivesUp(t *testing.T) {
	m := &flakyMailer{failures: 10}
	q := newTestQueue(m, 1, 2)
	q.StartWorkerPool()

	require.NoError(t, q.Enqueue("a@example.com", "s", "b"))
	require.NoError(t, q.Stop(context.Background()))

	calls, sent := m.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestMailQueueNeverBlocks(t *testing.T) {
	q := newTestQueue(&flakyMailer{}, 1, 0)

	// No workers, so the buffer fills up
	require.NoError(t, q.Enqueue("a@example.com", "s", "b"))
	assert.ErrorIs(t, q.Enqueue("b@example.com", "s", "b"), ErrMailQueueFull)
	assert.Equal(t, 1, q.Pending())
}

func TestMailQueueClosed(t *testing.T) {
	q := newTestQueue(&flakyMailer{}, 1, 0)
	q.StartWorkerPool()

	require.NoError(t, q.Stop(context.Background()))
	assert.ErrorIs(t, q.Enqueue("a@example.com", "s", "b"), ErrMailQueueClosed)

	// Stopping twice is harmless
	assert.NoError(t, q.Stop(context.Background()))
}

func TestCodeMail(t *testing.T) {
	for _, p := range []model.CodePurpose{model.PurposeVerifyEmail, model.PurposeResetPassword, model.PurposeChangePassword} {
		subject, body, err := CodeMail(p, "042137", 15*time.Minute)
		require.NoError(t, err)

		assert.NotEmpty(t, subject)
		assert.Contains(t, body, ">042137<")
		assert.Contains(t, body, "15 minutes")
	}

	_, _, err := CodeMail(model.CodePurpose("BOGUS"), "042137", time.Minute)
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.Send(context.Background(), "a@example.com", "s", "b"))
}

// pendingMailer records what the queue reports while a job is being sent
type pendingMailer struct {
	mu  sync.Mutex
	q   *MailQueue
	low int
}

func (m *pendingMailer) Send(context.Context, string, string, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.low = min(m.low, m.q.Pending())
	return nil
}

func TestMailQueuePendingCountsInFlightJobs(t *testing.T) {
	m := &pendingMailer{low: 1}
	q := NewMailQueue(m, 64, 4, 0)
	m.q = q
	q.StartWorkerPool()

	var wg sync.WaitGroup
	for _i := 0; _i < 8; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i := 0; _i < 8; _i++ {
				assert.NoError(t, q.Enqueue("a@example.com", "s", "b"))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, q.Stop(context.Background()))

	// A job being sent is still pending
	assert.Equal(t, 1, m.low)
	assert.Zero(t, q.Pending())
}
