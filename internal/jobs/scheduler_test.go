package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
)

type failure struct {
	id    string
	msg   string
	final bool
}

type stubScheduledRepo struct {
	repository.ScheduledMessageRepository
	due      []model.ScheduledMessage
	dueErr   error
	attempts map[string]int
	sent     []string
	failures []failure
}

func newStubScheduledRepo(due ...model.ScheduledMessage) *stubScheduledRepo {
	repo := &stubScheduledRepo{due: due, attempts: make(map[string]int)}
	for _, m := range due {
		repo.attempts[m.ID] = m.Attempts
	}
	return repo
}

func (s *stubScheduledRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	return s.due, s.dueErr
}

func (s *stubScheduledRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	s.attempts[id]++
	return s.attempts[id], nil
}

func (s *stubScheduledRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *stubScheduledRepo) RecordFailure(ctx context.Context, id, message string, final bool) error {
	s.failures = append(s.failures, failure{id: id, msg: message, final: final})
	return nil
}

type stubSessions struct {
	sessions map[string]model.Session
	status   map[string]model.SessionStatus
}

func (s stubSessions) FindByID(id string) (model.Session, bool) {
	session, ok := s.sessions[id]
	return session, ok
}

func (s stubSessions) StatusOf(id string) model.StatusInfo {
	status, ok := s.status[id]
	if !ok {
		status = model.SessionStatusDisconnected
	}
	return model.StatusInfo{Status: status, IsActive: status != model.SessionStatusDisconnected}
}

type sendCall struct {
	sessionID, to, text string
}

type stubSender struct {
	calls []sendCall
	err   error
}

func (s *stubSender) Send(ctx context.Context, sessionID, destination, text string) (*model.SentMessage, error) {
	s.calls = append(s.calls, sendCall{sessionID, destination, text})
	if s.err != nil {
		return nil, s.err
	}
	return &model.SentMessage{ID: "wamid", To: destination, Body: text}, nil
}

func testSessions() stubSessions {
	return stubSessions{
		sessions: map[string]model.Session{
			"live":    {ID: "live", OwnerID: "owner-1"},
			"pending": {ID: "pending", OwnerID: "owner-1"},
		},
		status: map[string]model.SessionStatus{
			"live":    model.SessionStatusConnected,
			"pending": model.SessionStatusWaitingQR,
		},
	}
}

func scheduled(id, sessionID string, attempts int) model.ScheduledMessage {
	return model.ScheduledMessage{
		ID:              id,
		OwnerID:         "owner-1",
		SessionID:       sessionID,
		RecipientNumber: "5511987654321",
		Content:         "reminder " + id,
		Status:          model.ScheduledStatusPending,
		Attempts:        attempts,
		MaxAttempts:     3,
	}
}

func TestNewMessageScheduler(t *testing.T) {
	_, err := NewMessageScheduler(newStubScheduledRepo(), testSessions(), &stubSender{}, "not a spec")
	assert.Error(t, err)

	for _, spec := range []string{"@every 1m", "*/30 * * * * *", "0 * * * *"} {
		_, err := NewMessageScheduler(newStubScheduledRepo(), testSessions(), &stubSender{}, spec)
		assert.NoError(t, err, spec)
	}
}

func TestMessageScheduler_ProcessDue(t *testing.T) {
	ctx := context.Background()

	t.Run("sends due messages in order", func(t *testing.T) {
		repo := newStubScheduledRepo(scheduled("m1", "live", 0), scheduled("m2", "live", 1))
		sender := &stubSender{}
		s, err := NewMessageScheduler(repo, testSessions(), sender, "@every 1m")
		require.NoError(t, err)

		assert.Equal(t, 2, s.ProcessDue(ctx))
		assert.Equal(t, []string{"m1", "m2"}, repo.sent)
		assert.Equal(t, []sendCall{
			{"live", "5511987654321", "reminder m1"},
			{"live", "5511987654321", "reminder m2"},
		}, sender.calls)
		assert.Equal(t, 1, repo.attempts["m1"])
		assert.Equal(t, 2, repo.attempts["m2"])
	})

	t.Run("session not connected records a retryable failure", func(t *testing.T) {
		repo := newStubScheduledRepo(scheduled("m1", "pending", 0))
		sender := &stubSender{}
		s, _ := NewMessageScheduler(repo, testSessions(), sender, "@every 1m")

		assert.Equal(t, 0, s.ProcessDue(ctx))
		assert.Empty(t, sender.calls)
		require.Len(t, repo.failures, 1)
		assert.False(t, repo.failures[0].final)
		assert.Contains(t, repo.failures[0].msg, "waiting_qr")
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := newStubScheduledRepo(scheduled("m1", "gone", 0))
		s, _ := NewMessageScheduler(repo, testSessions(), &stubSender{}, "@every 1m")

		s.ProcessDue(ctx)
		require.Len(t, repo.failures, 1)
		assert.Contains(t, repo.failures[0].msg, "not found")
	})

	t.Run("foreign session", func(t *testing.T) {
		msg := scheduled("m1", "live", 0)
		msg.OwnerID = "owner-2"
		repo := newStubScheduledRepo(msg)
		sender := &stubSender{}
		s, _ := NewMessageScheduler(repo, testSessions(), sender, "@every 1m")

		s.ProcessDue(ctx)
		assert.Empty(t, sender.calls)
		require.Len(t, repo.failures, 1)
	})

	t.Run("last attempt marks failed", func(t *testing.T) {
		repo := newStubScheduledRepo(scheduled("m1", "live", 2))
		sender := &stubSender{err: errors.New("send failed")}
		s, _ := NewMessageScheduler(repo, testSessions(), sender, "@every 1m")

		assert.Equal(t, 0, s.ProcessDue(ctx))
		require.Len(t, repo.failures, 1)
		assert.True(t, repo.failures[0].final)
		assert.Equal(t, "send failed", repo.failures[0].msg)
		assert.Empty(t, repo.sent)
	})

	t.Run("failure does not stop the batch", func(t *testing.T) {
		repo := newStubScheduledRepo(scheduled("m1", "pending", 0), scheduled("m2", "live", 0))
		s, _ := NewMessageScheduler(repo, testSessions(), &stubSender{}, "@every 1m")

		assert.Equal(t, 1, s.ProcessDue(ctx))
		assert.Equal(t, []string{"m2"}, repo.sent)
	})

	t.Run("load error", func(t *testing.T) {
		repo := newStubScheduledRepo()
		repo.dueErr = errors.New("db down")
		s, _ := NewMessageScheduler(repo, testSessions(), &stubSender{}, "@every 1m")

		assert.Equal(t, 0, s.ProcessDue(ctx))
	})
}

func TestMessageScheduler_StartStop(t *testing.T) {
	s, err := NewMessageScheduler(newStubScheduledRepo(), testSessions(), &stubSender{}, "@every 1h")
	require.NoError(t, err)

	assert.False(t, s.Status().Running)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	status := s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "@every 1h", status.Spec)
	require.NotNil(t, status.NextRun)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *status.NextRun, 5*time.Second)

	s.Stop()
	assert.False(t, s.Status().Running)
	assert.Nil(t, s.Status().NextRun)

	assert.NotPanics(t, s.Stop)
}
