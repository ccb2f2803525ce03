package explorer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dsecure/portal/internal/models"
)

// Filename returns the export file name for tab on the UTC date of now.
func Filename(tab models.Kind, now time.Time) string {
	return fmt.Sprintf("%s-%s.csv", tab, now.UTC().Format("2006-01-02"))
}

// WriteCSV writes a header row of the collection's field names followed by
// one row per item.
func WriteCSV[T any](w io.Writer, c Collection[T], items []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(c.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, it := range items {
		if err := cw.Write(c.Row(it)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Export writes the filtered, unpaginated rows of the active tab as CSV and
// returns the file name to offer for download.
func (e *Explorer) Export(w io.Writer, now time.Time) (string, error) {
	e.mu.Lock()
	tab, f := e.view.Tab, e.view.Filters
	logs, commands, sessions := e.logs, e.commands, e.sessions
	e.mu.Unlock()

	var err error
	switch tab {
	case models.KindCommands:
		err = WriteCSV(w, Commands, Commands.Apply(commands, f))
	case models.KindSessions:
		err = WriteCSV(w, Sessions, Sessions.Apply(sessions, f))
	default:
		err = WriteCSV(w, Logs, Logs.Apply(logs, f))
	}
	if err != nil {
		return "", err
	}
	return Filename(tab, now), nil
}

// ExportFile writes the export of the active tab into dir and returns the
// path of the written file.
func (e *Explorer) ExportFile(dir string, now time.Time) (string, error) {
	var buf bytes.Buffer
	name, err := e.Export(&buf, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
