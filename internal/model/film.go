package model

// Film describes a movie that can be scheduled.  Duration is the running
// time in minutes and drives the screening conflict window.  Trailer and
// Poster are optional URLs.
type Film struct {
	ID       string  `json:"FilmID"`
	Name     string  `json:"Name"`
	Category string  `json:"Category"`
	Genre    string  `json:"Genre"`
	Duration int     `json:"Duration"`
	Trailer  *string `json:"Trailer"`
	Poster   *string `json:"Poster"`
}
