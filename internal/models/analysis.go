package models

// Bitset is a fixed-length bit sequence used by the progress analysis to
// record which tasks a student completed and which elaborations exist.
// All() over a zero-length bitset is vacuously true; Any() is false.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset creates an all-false bitset of the given length.
func NewBitset(size int) Bitset {
	if size < 0 {
		size = 0
	}
	return Bitset{words: make([]uint64, (size+63)/64), size: size}
}

// Len returns the bitset length.
func (b Bitset) Len() int { return b.size }

// Set sets bit i. Out-of-range indices are ignored.
func (b Bitset) Set(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i/64] |= 1 << uint(i%64)
}

// Test reports whether bit i is set.
func (b Bitset) Test(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

// All reports whether every bit is set.
func (b Bitset) All() bool {
	for i := 0; i < b.size; i++ {
		if !b.Test(i) {
			return false
		}
	}
	return true
}

// Any reports whether at least one bit is set.
func (b Bitset) Any() bool {
	for _, word := range b.words {
		if word != 0 {
			return true
		}
	}
	return false
}

// AnalysisStudent is the student view produced by the progress analysis.
// Groups is the union of every group the student's records reference; a
// student who changed groups during the year keeps all of them.
// Disqualified marks membership in a group carrying the disqualification
// marker; it is display information and never changes the analysis result.
type AnalysisStudent struct {
	ID           int64   `json:"id"`
	Matrikel     string  `json:"matrikel"`
	Name         string  `json:"name"`
	Username     *string `json:"username,omitempty"`
	Groups       []int64 `json:"groups"`
	Instructed   bool    `json:"instructed"`
	Disqualified bool    `json:"disqualified,omitempty"`
}

// MaxGroup returns the numerically largest associated group id, or zero for
// a student without any mapped group. Groups is kept sorted ascending.
func (s AnalysisStudent) MaxGroup() int64 {
	if len(s.Groups) == 0 {
		return 0
	}
	return s.Groups[len(s.Groups)-1]
}

// StudentProgress pairs a student with one bit per task or experiment. The
// bit at index i corresponds to the i-th entry of the dense index the
// analysis built for the year; absence of a student from a result set means
// "all bits false", not an error.
type StudentProgress struct {
	Student AnalysisStudent `json:"student"`
	Bits    Bitset          `json:"-"`
}
