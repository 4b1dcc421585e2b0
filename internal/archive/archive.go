// Package archive keeps a sqlite history of finished benchmark sessions.
package archive

import (
	"context"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
	"github.com/google/uuid"
)

type service struct {
	repo *repository
	log  logger.Logger
}

// No-op implementation
type noopRecorder struct{}

// NewService opens the archive described by cfg. A disabled archive yields
// a recorder that accepts and forgets everything.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Session archive disabled, using no-op recorder")
		return NewNoop(), nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create session archive")
		return nil, err
	}

	return &service{repo: repo, log: log}, nil
}

func (s *service) Record(ctx context.Context, session *Session) (string, error) {
	errFactory := errors.New()

	if session == nil {
		return "", errFactory.New(ErrInvalidSession)
	}

	if err := ctx.Err(); err != nil {
		return "", errFactory.Wrap(ErrOperationTimeout, err)
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	} else if _, err := uuid.Parse(session.ID); err != nil {
		return "", errFactory.Wrap(ErrInvalidSession, err)
	}

	if err := s.repo.insert(ctx, session); err != nil {
		return "", err
	}

	s.log.Info().
		Str("session_id", session.ID).
		Int("records", len(session.Measurements)).
		Msg("Session archived")

	return session.ID, nil
}

func (s *service) Sessions(ctx context.Context) ([]Summary, error) {
	return s.repo.sessions(ctx)
}

func (s *service) Measurements(ctx context.Context, id string) ([]model.Measurement, error) {
	return s.repo.measurements(ctx, id)
}

func (s *service) Close() error {
	return s.repo.close()
}

func (*service) Enabled() bool {
	return true
}

// NewNoop returns a recorder that accepts and forgets every session.
func NewNoop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) Record(_ context.Context, _ *Session) (string, error) {
	return "", nil
}

func (noopRecorder) Sessions(_ context.Context) ([]Summary, error) {
	return nil, nil
}

func (noopRecorder) Measurements(_ context.Context, id string) ([]model.Measurement, error) {
	return nil, errors.New().WithData(ErrNotFound, id)
}

func (noopRecorder) Close() error {
	return nil
}

func (noopRecorder) Enabled() bool {
	return false
}
