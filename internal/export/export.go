// Package export turns a finished session log into CSV and hands it to a
// platform save mechanism.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/model"
)

const (
	DefaultFileName = "data"
	Extension       = ".csv"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Record is a row that knows its own column names.
type Record interface {
	Fields() []string
	Values() []string
}

// Saver persists an encoded export under a file name.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// Encode renders records as CSV: a header taken from the first record's
// field names, then one comma-joined row per record. Lines are separated
// by a single newline with none after the last row. Values are not quoted
// or escaped.
func Encode[R Record](records []R) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New().New(ErrEmptyLog)
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(records[0].Fields(), ","))
	for _, r := range records {
		lines = append(lines, strings.Join(r.Values(), ","))
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// FileName normalizes an operator supplied name: blank becomes the default
// and the .csv extension is added when missing.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFileName
	}
	if !strings.EqualFold(filepath.Ext(name), Extension) {
		name += Extension
	}

	return name
}

// Exporter encodes session logs and saves them.
type Exporter struct {
	saver Saver
	log   logger.Logger
}

// NewExporter returns an exporter writing through saver.
func NewExporter(saver Saver, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.Nop()
	}

	return &Exporter{saver: saver, log: log}
}

// Export encodes the session log and saves it as filename. It returns the
// normalized file name that was handed to the saver.
func (e *Exporter) Export(ctx context.Context, log []model.Measurement, filename string) (string, error) {
	data, err := Encode(log)
	if err != nil {
		e.log.Warn().Err(err).Msg("Nothing to export")
		return "", err
	}

	name := FileName(filename)
	if err := e.saver.Save(ctx, name, data); err != nil {
		e.log.Error().Err(err).Str("file", name).Msg("Export failed")
		return "", err
	}

	e.log.Info().
		Str("file", name).
		Int("records", len(log)).
		Msg("Session exported")

	return name, nil
}

// FileSaver writes exports into a directory on the local filesystem.
type FileSaver struct {
	Dir string
}

// Save writes data to Dir/filename. Only the base name of filename is
// used, so an export can never escape Dir.
func (s FileSaver) Save(ctx context.Context, filename string, data []byte) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrSaveFailed, err)
	}

	base := filepath.Base(filename)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return errFactory.WithData(ErrInvalidFileName, filename)
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errFactory.WithData(ErrSaveFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, data, defaultFilePerm); err != nil {
		return errFactory.WithData(ErrSaveFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "write_file",
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}
