package models

import "strings"

// Experiment is a lab session topic. It owns tasks and is the unit for
// written elaborations.
type Experiment struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Year int    `db:"year" json:"year"`
}

// Task is an atomic, gradable unit of work within an experiment.
type Task struct {
	ID           int64  `db:"id" json:"id"`
	ExperimentID int64  `db:"experiment_id" json:"experiment_id"`
	Name         string `db:"name" json:"name"`
}

// IsExtra reports whether the task is extra credit. By convention these are
// named with a leading Z ("Zusatzaufgabe") and do not count towards the
// required-task set.
func (t Task) IsExtra() bool {
	return strings.HasPrefix(t.Name, "Z") || strings.HasPrefix(t.Name, "z")
}

// TaskDetail carries a task together with its experiment context, used
// when audit messages need the surrounding names.
type TaskDetail struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	ExperimentID   int64  `db:"experiment_id" json:"experiment_id"`
	ExperimentName string `db:"experiment_name" json:"experiment_name"`
	Year           int    `db:"year" json:"year"`
}
