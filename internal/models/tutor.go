package models

// Tutor grants a username tutoring rights for exactly one year. The same
// person may hold independent tutor rows in several years, each with its
// own admin flag.
type Tutor struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Year     int    `db:"year" json:"year"`
	IsAdmin  bool   `db:"is_admin" json:"is_admin"`
}
