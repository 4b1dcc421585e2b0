package archive

import (
	"database/sql"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sessions (
	       id                 TEXT PRIMARY KEY,
	       started_at         TEXT NOT NULL,
	       finished_at        TEXT NOT NULL,
	       motor1_speed       INTEGER NOT NULL CHECK (motor1_speed BETWEEN -127 AND 127),
	       motor2_speed       INTEGER NOT NULL CHECK (motor2_speed BETWEEN -127 AND 127),
	       benchmark_duration INTEGER NOT NULL CHECK (benchmark_duration >= 0),
	       target_wattage     REAL,
	       file_name          TEXT NOT NULL,
	       samples            INTEGER NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS measurements (
	       session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	       seq        INTEGER NOT NULL,
	       time       REAL NOT NULL,
	       force      REAL NOT NULL,
	       PRIMARY KEY (session_id, seq)
	   );`

	insertSessionSQL = `
    INSERT INTO sessions (
        id, started_at, finished_at,
        motor1_speed, motor2_speed, benchmark_duration, target_wattage,
        file_name, samples
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertMeasurementSQL = `
    INSERT INTO measurements (session_id, seq, time, force)
    VALUES (?, ?, ?, ?)`

	selectSessionsSQL = `
    SELECT id, started_at, finished_at,
           motor1_speed, motor2_speed, benchmark_duration, target_wattage,
           file_name, samples
    FROM sessions
    ORDER BY started_at DESC`

	selectMeasurementsSQL = `
    SELECT time, force
    FROM measurements
    WHERE session_id = ?
    ORDER BY seq`
)

var tables = []string{"measurements", "sessions", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "create_tables",
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
