package model

// TicketType prices a ticket (e.g. "Adult", "Child").  The ID is chosen by
// the administrator.
type TicketType struct {
	ID   string  `json:"TicketTypeID"`
	Cost float64 `json:"Cost"`
}
