package model

// Screening represents a scheduled showing of a film in a theatre.  The
// Date and StartTime fields are kept as the strings the client supplied
// ("YYYY-MM-DD" and "HH:MM"); they are compared verbatim and never
// normalised to a calendar or timezone.
//
// Fields:
//  ID             – generated identifier, e.g. "Screening12".
//  FilmID         – reference to the film being shown.
//  TheatreID      – reference to the theatre hosting the screening.
//  Date           – screening date, "YYYY-MM-DD".
//  StartTime      – start time of day, "HH:MM" (24h).
//  SeatsRemaining – seats not yet claimed by a live ticket.  Always
//                   between 0 and the theatre capacity.
type Screening struct {
	ID             string `json:"ScreeningID"`
	FilmID         string `json:"FilmID"`
	TheatreID      string `json:"TheatreID"`
	Date           string `json:"Date"`
	StartTime      string `json:"StartTime"`
	SeatsRemaining int    `json:"SeatsRemaining"`
}
