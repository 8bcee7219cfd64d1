package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

type DispatcherConfig struct {
	StateWait         time.Duration
	VerifyAttempts    int
	VerifyTimeout     time.Duration
	VerifyBackoff     time.Duration
	SendAttempts      int
	SendTimeout       time.Duration
	SendBackoffFactor time.Duration
	CountryCode       string
	ContactSuffix     string
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		StateWait:         3 * time.Second,
		VerifyAttempts:    3,
		VerifyTimeout:     10 * time.Second,
		VerifyBackoff:     config.VerifyBackoff,
		SendAttempts:      3,
		SendTimeout:       30 * time.Second,
		SendBackoffFactor: config.SendBackoffFactor,
		CountryCode:       "55",
		ContactSuffix:     config.ContactSuffix,
	}
}

// DispatcherConfigFrom reads the delivery tunables from the environment config.
func DispatcherConfigFrom(cfg *config.Config) DispatcherConfig {
	dc := DefaultDispatcherConfig()
	dc.StateWait = cfg.StateWait()
	dc.VerifyAttempts = cfg.VerifyAttempts
	dc.VerifyTimeout = cfg.VerifyTimeout()
	dc.SendAttempts = cfg.SendAttempts
	dc.SendTimeout = cfg.SendTimeout()
	dc.CountryCode = cfg.DefaultCountryCode
	return dc
}

// MessageDispatcher sends text through a session's live client with verification and bounded retries.
type MessageDispatcher struct {
	registry   *SessionRegistry
	cfg        DispatcherConfig
	normalizer whatsapp.Normalizer
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewMessageDispatcher(registry *SessionRegistry, cfg DispatcherConfig) *MessageDispatcher {
	return &MessageDispatcher{
		registry: registry,
		cfg:      cfg,
		normalizer: whatsapp.Normalizer{
			CountryCode: cfg.CountryCode,
			Suffix:      cfg.ContactSuffix,
		},
		sleep: sleepContext,
	}
}

// Send delivers text to destination. The caller has already checked ownership and status.
func (d *MessageDispatcher) Send(ctx context.Context, sessionID, destination, text string) (*model.SentMessage, error) {
	client, ok := d.registry.Client(sessionID)
	if !ok {
		return nil, apperrors.SessionNotActive(sessionID)
	}

	if err := d.awaitConnected(ctx, sessionID, client); err != nil {
		return nil, err
	}

	dest, err := d.normalizer.Normalize(destination)
	if err != nil {
		return nil, err
	}

	if err := d.verify(ctx, sessionID, client, dest); err != nil {
		return nil, err
	}

	sent, err := d.sendWithRetry(ctx, sessionID, client, dest, text)
	if err == nil {
		log.Info().
			Str("sessionId", sessionID).
			Str("messageId", sent.ID).
			Str("to", dest).
			Msg("message sent")
		return sent, nil
	}
	if apperrors.HasCode(err, apperrors.ErrCodeSessionDisconnectedMidSend) {
		return nil, err
	}

	if state, stateErr := client.State(ctx); stateErr != nil || state != whatsapp.StateConnected {
		d.registry.Evict(ctx, sessionID, "send failed on a disconnected transport")
	}
	return nil, apperrors.SendFailed(err)
}

// awaitConnected tolerates one transient non-connected reading before giving up.
func (d *MessageDispatcher) awaitConnected(ctx context.Context, sessionID string, client whatsapp.Client) error {
	state, err := client.State(ctx)
	if err == nil && state == whatsapp.StateConnected {
		return nil
	}

	log.Debug().
		Str("sessionId", sessionID).
		Str("state", string(state)).
		Msg("transport not connected yet, waiting")

	if err := d.sleep(ctx, d.cfg.StateWait); err != nil {
		return err
	}

	state, err = client.State(ctx)
	if err != nil || state != whatsapp.StateConnected {
		return apperrors.SessionNotConnected(sessionID)
	}
	return nil
}

// verify aborts only on a definitive "not registered" answer; errors and timeouts are inconclusive.
func (d *MessageDispatcher) verify(ctx context.Context, sessionID string, client whatsapp.Client, dest string) error {
	for attempt := 1; attempt <= d.cfg.VerifyAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.VerifyTimeout)
		registered, err := lookupWithin(attemptCtx, client, dest)
		cancel()

		if err == nil {
			if !registered {
				return apperrors.InvalidDestination(dest)
			}
			return nil
		}

		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Int("attempt", attempt).
			Msg("destination verification inconclusive")

		if attempt < d.cfg.VerifyAttempts {
			if err := d.sleep(ctx, d.cfg.VerifyBackoff); err != nil {
				return err
			}
		}
	}

	log.Warn().Str("sessionId", sessionID).Str("to", dest).Msg("sending without destination verification")
	return nil
}

// lookupWithin bounds a registration lookup by ctx even when the client ignores it.
func lookupWithin(ctx context.Context, client whatsapp.Client, dest string) (bool, error) {
	type answer struct {
		registered bool
		err        error
	}
	done := make(chan answer, 1)
	go func() {
		registered, err := client.IsRegistered(ctx, dest)
		done <- answer{registered: registered, err: err}
	}()

	select {
	case a := <-done:
		return a.registered, a.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *MessageDispatcher) sendWithRetry(ctx context.Context, sessionID string, client whatsapp.Client, dest, text string) (*model.SentMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.SendAttempts; attempt++ {
		if attempt > 1 {
			if err := d.sleep(ctx, time.Duration(attempt-1)*d.cfg.SendBackoffFactor); err != nil {
				return nil, errors.Join(lastErr, err)
			}
			if state, err := client.State(ctx); err != nil || state != whatsapp.StateConnected {
				d.registry.Evict(ctx, sessionID, "transport dropped between send attempts")
				return nil, apperrors.SessionDisconnectedMidSend(sessionID).WithCause(lastErr)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		sent, err := client.SendText(attemptCtx, dest, text)
		cancel()
		if err == nil {
			return sent, nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Int("attempt", attempt).
			Msg("send attempt failed")
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
