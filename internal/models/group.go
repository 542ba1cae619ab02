package models

import "strings"

// DisqualifiedMarker inside a group comment flags the group as disqualified.
// This is a long-standing convention of the course, not a dedicated column.
const DisqualifiedMarker = "(ENDE)"

// Group is a fixed team of students sharing a lab desk for one year. The
// owning year is reached through the group's day.
type Group struct {
	ID      int64  `db:"id" json:"id"`
	Desk    int    `db:"desk" json:"desk"`
	DayID   int64  `db:"day_id" json:"day_id"`
	Comment string `db:"comment" json:"comment"`
}

// Disqualified reports whether the group comment carries the marker.
func (g Group) Disqualified() bool {
	return strings.Contains(g.Comment, DisqualifiedMarker)
}

// GroupMapping assigns a student to a group. Students persist independently
// of their memberships.
type GroupMapping struct {
	StudentID int64 `db:"student_id" json:"student_id"`
	GroupID   int64 `db:"group_id" json:"group_id"`
}

// Completion records that a group finished a task. Presence is the whole
// record; there is at most one row per (group, task).
type Completion struct {
	GroupID int64 `db:"group_id" json:"group_id"`
	TaskID  int64 `db:"task_id" json:"task_id"`
}

// Elaboration is a group's written report for one experiment, with rework
// and acceptance status. At most one row exists per (group, experiment);
// writes are upserts.
type Elaboration struct {
	GroupID        int64 `db:"group_id" json:"group_id"`
	ExperimentID   int64 `db:"experiment_id" json:"experiment_id"`
	ReworkRequired bool  `db:"rework_required" json:"rework_required"`
	Accepted       bool  `db:"accepted" json:"accepted"`
}

// StatusLabel names the elaboration state for audit descriptions.
func (e Elaboration) StatusLabel() string {
	switch {
	case e.ReworkRequired && e.Accepted:
		return "rework accepted"
	case e.ReworkRequired:
		return "needing rework"
	case e.Accepted:
		return "accepted"
	default:
		return "submitted"
	}
}
