package model

import "time"

// Project is the reconciliation boundary. Matching never crosses projects.
type Project struct {
	ID        string
	Name      string
	Owner     string
	CreatedAt time.Time
}

// StatementFile is one loaded bank statement or ledger export.
type StatementFile struct {
	ID         string
	ProjectID  string
	Name       string
	Source     SourceKind
	UploadedAt time.Time
}
