package model

// Ticket is a single claimed seat for a screening.  A ticket belongs to a
// booking and is priced by its ticket type.  Seat coordinates are 1-based.
// At most one live ticket may reference a given (ScreeningID, SeatRow,
// SeatColumn) combination.
type Ticket struct {
	ID           string `json:"TicketID"`
	BookingID    string `json:"BookingID"`
	ScreeningID  string `json:"ScreeningID"`
	TicketTypeID string `json:"TicketType"`
	SeatRow      int    `json:"SeatRow"`
	SeatColumn   int    `json:"SeatColumn"`
}

// SameSeat reports whether t occupies the given seat of the given screening.
func (t Ticket) SameSeat(screeningID string, row, col int) bool {
	return t.ScreeningID == screeningID && t.SeatRow == row && t.SeatColumn == col
}
