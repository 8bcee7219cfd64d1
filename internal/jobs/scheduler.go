package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sender delivers a text through a session.
type Sender interface {
	Send(ctx context.Context, sessionID, destination, text string) (*model.SentMessage, error)
}

// SessionState is the registry view the scheduler checks before sending.
type SessionState interface {
	FindByID(id string) (model.Session, bool)
	StatusOf(id string) model.StatusInfo
}

type SchedulerStatus struct {
	Running bool       `json:"isRunning"`
	Spec    string     `json:"spec"`
	NextRun *time.Time `json:"nextExecution,omitempty"`
}

// MessageScheduler polls for due scheduled messages on a cron spec and sends them one at a time.
type MessageScheduler struct {
	msgRepo  repository.ScheduledMessageRepository
	sessions SessionState
	sender   Sender
	spec     string
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	running bool
}

func NewMessageScheduler(
	msgRepo repository.ScheduledMessageRepository,
	sessions SessionState,
	sender Sender,
	spec string,
) (*MessageScheduler, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse scheduler spec %q: %w", spec, err)
	}
	return &MessageScheduler{
		msgRepo:  msgRepo,
		sessions: sessions,
		sender:   sender,
		spec:     spec,
		now:      time.Now,
	}, nil
}

func (s *MessageScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := c.AddFunc(s.spec, func() {
		s.ProcessDue(context.Background())
	})
	if err != nil {
		return fmt.Errorf("add scheduler job: %w", err)
	}

	c.Start()
	s.cron = c
	s.entryID = id
	s.running = true

	log.Info().Str("spec", s.spec).Msg("message scheduler started")
	return nil
}

// Stop halts the schedule and waits for a run in progress to finish.
func (s *MessageScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	log.Info().Msg("message scheduler stopped")
}

func (s *MessageScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{Running: s.running, Spec: s.spec}
	if s.running && s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// ProcessDue sends every due pending message and returns how many were delivered.
func (s *MessageScheduler) ProcessDue(ctx context.Context) int {
	due, err := s.msgRepo.FindDue(ctx, s.now(), config.ScheduledBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to load due scheduled messages")
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	log.Info().Int("count", len(due)).Msg("processing scheduled messages")

	sent := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if s.deliver(ctx, &due[i]) {
			sent++
		}
	}
	return sent
}

func (s *MessageScheduler) deliver(ctx context.Context, msg *model.ScheduledMessage) bool {
	attempts, err := s.msgRepo.IncrementAttempts(ctx, msg.ID)
	if err != nil {
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to count scheduled message attempt")
		return false
	}

	if err := s.send(ctx, msg); err != nil {
		final := attempts >= msg.MaxAttempts
		if recErr := s.msgRepo.RecordFailure(ctx, msg.ID, err.Error(), final); recErr != nil {
			log.Error().Err(recErr).Str("messageId", msg.ID).Msg("failed to record scheduled message failure")
		}

		evt := log.Warn()
		if final {
			evt = log.Error()
		}
		evt.Err(err).
			Str("messageId", msg.ID).
			Str("sessionId", msg.SessionID).
			Int("attempts", attempts).
			Bool("final", final).
			Msg("scheduled message not sent")
		return false
	}

	if err := s.msgRepo.MarkSent(ctx, msg.ID, s.now()); err != nil {
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to mark scheduled message sent")
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("sessionId", msg.SessionID).
		Msg("scheduled message sent")
	return true
}

func (s *MessageScheduler) send(ctx context.Context, msg *model.ScheduledMessage) error {
	session, ok := s.sessions.FindByID(msg.SessionID)
	if !ok {
		return fmt.Errorf("session %s not found", msg.SessionID)
	}
	if session.OwnerID != msg.OwnerID {
		return errors.New("session belongs to another owner")
	}
	if status := s.sessions.StatusOf(msg.SessionID); status.Status != model.SessionStatusConnected {
		return fmt.Errorf("session %s is %s", msg.SessionID, status.Status)
	}

	_, err := s.sender.Send(ctx, msg.SessionID, msg.RecipientNumber, msg.Content)
	return err
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
