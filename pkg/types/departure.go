package types

import (
	"strconv"
	"time"
)

// MaxDepartures is the upper bound on entries shown per refresh.
const MaxDepartures = 8

// StopQuery is the opaque stop identifier used to address the BVG API
type StopQuery string

// Departure is one upcoming vehicle departure, normalized for display.
// Values are never mutated after construction.
type Departure struct {
	Line         string `json:"line"`
	Direction    string `json:"direction"`
	ScheduledAt  string `json:"scheduled_at"`
	MinutesUntil int    `json:"minutes_until"`
}

// Valid reports whether the departure may appear on a board
func (d Departure) Valid() bool {
	return d.Line != "" && d.MinutesUntil >= 0
}

// Countdown formats the remaining time the way the board shows it:
// "now" for anything due within the current minute, otherwise "N min".
func (d Departure) Countdown() string {
	if d.MinutesUntil <= 0 {
		return "now"
	}
	return strconv.Itoa(d.MinutesUntil) + " min"
}

// Board is the result of one refresh cycle as handed to a renderer.
// FetchOK is false when the API could not be reached; Departures is then empty.
type Board struct {
	CycleID      string      `json:"cycle_id"`
	StopID       StopQuery   `json:"stop_id"`
	StationLabel string      `json:"station_label"`
	GeneratedAt  time.Time   `json:"generated_at"`
	FetchOK      bool        `json:"fetch_ok"`
	Departures   []Departure `json:"departures"`
}

// Empty reports whether the board has nothing to show
func (b Board) Empty() bool {
	return len(b.Departures) == 0
}
