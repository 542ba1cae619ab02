package models

import "time"

// Year is the top-level multi-tenancy boundary: one academic course offering.
// A year that is no longer writable is a read-only archive; there is no
// public operation that reopens it.
type Year struct {
	ID       int  `db:"id" json:"id"`
	Writable bool `db:"writable" json:"writable"`
}

// Day is a weekly lab slot within one year. Groups are assigned to a day.
type Day struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Year int    `db:"year" json:"year"`
}

// Event schedules an experiment on a day. At most one event exists per
// (day, experiment) pair; rescheduling upserts the date.
type Event struct {
	DayID        int64     `db:"day_id" json:"day_id"`
	ExperimentID int64     `db:"experiment_id" json:"experiment_id"`
	Date         time.Time `db:"date" json:"date"`
}
