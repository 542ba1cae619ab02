package models

// Student is a course participant. Students belong to a year and survive
// group deletions; only whole-year deletion removes them.
type Student struct {
	ID         int64   `db:"id" json:"id"`
	Matrikel   string  `db:"matrikel" json:"matrikel"`
	GivenName  string  `db:"given_name" json:"given_name"`
	FamilyName string  `db:"family_name" json:"family_name"`
	Year       int     `db:"year" json:"year"`
	Username   *string `db:"username" json:"username,omitempty"`
	Instructed bool    `db:"instructed" json:"instructed"`
}

// Name returns the display name.
func (s Student) Name() string {
	return s.GivenName + " " + s.FamilyName
}
