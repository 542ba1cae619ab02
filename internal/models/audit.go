package models

import "time"

// AuditLogEntry is one immutable line of the change history. Entries are
// only ever removed by whole-year deletion.
type AuditLogEntry struct {
	ID            int64     `db:"id" json:"id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	Year          int       `db:"year" json:"year"`
	Author        string    `db:"author" json:"author"`
	AffectedGroup *int64    `db:"affected_group" json:"affected_group,omitempty"`
	Change        string    `db:"change" json:"change"`
}

// AuditFilter narrows an audit query. Search is whitespace-split into terms
// that must all match the change text case-insensitively; Author matches
// exactly and case-sensitively.
type AuditFilter struct {
	Year   *int
	Search string
	Group  *int64
	Author string
	Limit  int
}
