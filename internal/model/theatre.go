package model

// Theatre is a screening room.  Capacity is derived from the seating grid
// (Rows * Columns) when the theatre is created, but may be overridden by a
// later update.
type Theatre struct {
	ID       string `json:"TheatreID"`
	Capacity int    `json:"Capacity"`
	Rows     int    `json:"Rows"`
	Columns  int    `json:"Columns"`
}

// Contains reports whether the 1-based seat lies inside the seating grid.
// A theatre without a declared grid accepts any positive coordinate.
func (t Theatre) Contains(row, col int) bool {
	if row < 1 || col < 1 {
		return false
	}
	if t.Rows <= 0 || t.Columns <= 0 {
		return true
	}
	return row <= t.Rows && col <= t.Columns
}
