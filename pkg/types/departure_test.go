package types

import (
	"encoding/json"
	"testing"
)

func TestDeparture_Valid(t *testing.T) {
	tests := []struct {
		name     string
		dep      Departure
		expected bool
	}{
		{name: "line and future minutes", dep: Departure{Line: "U2", MinutesUntil: 5}, expected: true},
		{name: "departing now", dep: Departure{Line: "S5", MinutesUntil: 0}, expected: true},
		{name: "empty line", dep: Departure{Line: "", MinutesUntil: 3}, expected: false},
		{name: "already departed", dep: Departure{Line: "M10", MinutesUntil: -1}, expected: false},
		{name: "empty direction is fine", dep: Departure{Line: "100", Direction: "", MinutesUntil: 1}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dep.Valid(); got != tt.expected {
				t.Errorf("Valid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDeparture_Countdown(t *testing.T) {
	tests := []struct {
		minutes  int
		expected string
	}{
		{minutes: 0, expected: "now"},
		{minutes: 1, expected: "1 min"},
		{minutes: 12, expected: "12 min"},
	}

	for _, tt := range tests {
		got := Departure{Line: "U2", MinutesUntil: tt.minutes}.Countdown()
		if got != tt.expected {
			t.Errorf("Countdown() with %d minutes = %q, want %q", tt.minutes, got, tt.expected)
		}
	}
}

func TestBoardJSON_Marshal(t *testing.T) {
	board := Board{
		CycleID:      "c-1",
		StopID:       "900100003",
		StationLabel: "Alexanderplatz",
		Departures: []Departure{
			{Line: "U2", Direction: "Pankow", ScheduledAt: "2024-01-15T14:32:00+01:00", MinutesUntil: 5},
		},
	}

	data, err := json.Marshal(board)
	if err != nil {
		t.Fatalf("Failed to marshal Board: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if result["station_label"] != "Alexanderplatz" {
		t.Errorf("station_label = %v, want Alexanderplatz", result["station_label"])
	}
	deps, ok := result["departures"].([]interface{})
	if !ok || len(deps) != 1 {
		t.Fatalf("departures = %v, want one entry", result["departures"])
	}
	first := deps[0].(map[string]interface{})
	if first["line"] != "U2" {
		t.Errorf("line = %v, want U2", first["line"])
	}
	if first["minutes_until"] != float64(5) {
		t.Errorf("minutes_until = %v, want 5", first["minutes_until"])
	}
}

func TestBoard_Empty(t *testing.T) {
	if !(Board{}).Empty() {
		t.Error("zero Board should be empty")
	}
	if (Board{Departures: []Departure{{Line: "U2"}}}).Empty() {
		t.Error("Board with a departure should not be empty")
	}
}
