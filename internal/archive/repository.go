package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = time.RFC3339Nano

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.DBPath), "backups")
	}

	if err := ValidateAndUpdateSchema(db, backupDir, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Session archive initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func (r *repository) insert(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	var watts any
	if s.Command.TargetWattage != nil {
		watts = *s.Command.TargetWattage
	}

	if _, err := tx.ExecContext(ctx, insertSessionSQL,
		s.ID,
		s.StartedAt.UTC().Format(timeLayout),
		s.FinishedAt.UTC().Format(timeLayout),
		s.Command.Motor1Speed,
		s.Command.Motor2Speed,
		s.Command.BenchmarkDuration,
		watts,
		s.FileName,
		len(s.Measurements),
	); err != nil {
		return errFactory.WithData(ErrTransactionFailed, struct {
			Phase string
			Error string
		}{
			Phase: "insert_session",
			Error: err.Error(),
		})
	}

	stmt, err := tx.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for i, m := range s.Measurements {
		if _, err := stmt.ExecContext(ctx, s.ID, i, m.Time, m.Force); err != nil {
			return errFactory.WithData(ErrTransactionFailed, struct {
				Phase string
				Index int
				Error string
			}{
				Phase: "insert_measurement",
				Index: i,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	r.logger.Debug().
		Str("session_id", s.ID).
		Int("records", len(s.Measurements)).
		Msg("Session written to archive")

	return nil
}

func (r *repository) sessions(ctx context.Context) ([]Summary, error) {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum               Summary
			started, finished string
			watts             sql.NullFloat64
		)
		if err := rows.Scan(
			&sum.ID, &started, &finished,
			&sum.Command.Motor1Speed, &sum.Command.Motor2Speed, &sum.Command.BenchmarkDuration, &watts,
			&sum.FileName, &sum.Measurements,
		); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		if sum.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		if sum.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		sum.Command.Timestamp = sum.StartedAt
		if watts.Valid {
			w := watts.Float64
			sum.Command.TargetWattage = &w
		}

		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (r *repository) measurements(ctx context.Context, id string) ([]model.Measurement, error) {
	errFactory := errors.New()

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	if !exists {
		return nil, errFactory.WithData(ErrNotFound, id)
	}

	rows, err := r.db.QueryContext(ctx, selectMeasurementsSQL, id)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	out := []model.Measurement{}
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(&m.Time, &m.Force); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (r *repository) close() error {
	errFactory := errors.New()

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Session archive closed")

	return nil
}
