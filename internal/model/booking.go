package model

// Booking groups the tickets a customer purchased in one checkout.  The
// relation to tickets is logical only: deleting a booking does not delete
// its tickets.
type Booking struct {
	ID           string  `json:"BookingID"`
	NoOfSeats    int     `json:"NoOfSeats"`
	Cost         float64 `json:"Cost"`
	EmailAddress string  `json:"EmailAddress"`
}
