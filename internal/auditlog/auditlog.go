// Package auditlog records reconciliation actions in logs/audit-log.csv so
// the workspace history shows who matched what and when.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Action names written by the CLI.
const (
	ActionCreate = "create_project"
	ActionImport = "import"
	ActionAuto   = "auto_reconcile"
	ActionManual = "manual_reconcile"
	ActionReset  = "reset_project"
	ActionDelete = "delete_project"
	ActionExport = "export"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	ProjectID string
	Action    string
	Details   string
	Actor     string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,project_id,action,details,actor"

const (
	numFields    = 5
	logDir       = "logs"
	logFile      = "logs/audit-log.csv"
	colTimestamp = 0
	colProjectID = 1
	colAction    = 2
	colDetails   = 3
	colActor     = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colProjectID] = e.ProjectID
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colActor] = e.Actor
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		ProjectID: record[colProjectID],
		Action:    record[colAction],
		Details:   record[colDetails],
		Actor:     record[colActor],
	}, nil
}

// Path returns the audit log location inside root.
func Path(root string) string {
	return filepath.Join(root, logFile)
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file and header if needed.
func Append(root string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/audit-log.csv.
// Returns nil if the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ForProject filters entries down to one project, oldest first.
func ForProject(entries []Entry, projectID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
