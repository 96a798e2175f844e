// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit log.
package queue

// Event types published after a reservation transaction commits.
const (
	BookingCreated   = "booking.created"
	TicketCreated    = "ticket.created"
	TicketUpdated    = "ticket.updated"
	TicketDeleted    = "ticket.deleted"
	ScreeningCreated = "screening.created"
	ScreeningUpdated = "screening.updated"
)

// ReservationEvent describes one committed change.  Fields that do not
// apply to an event type are left empty; SeatsRemaining is the count of the
// affected screening right after the commit.
type ReservationEvent struct {
	Type           string `json:"type"`
	EntityID       string `json:"entity_id"`
	BookingID      string `json:"booking_id,omitempty"`
	ScreeningID    string `json:"screening_id,omitempty"`
	TheatreID      string `json:"theatre_id,omitempty"`
	SeatRow        int    `json:"seat_row,omitempty"`
	SeatColumn     int    `json:"seat_column,omitempty"`
	SeatsRemaining *int   `json:"seats_remaining,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}
