// Package tui holds the interactive station editor shown by --config.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bvgboard/pkg/station"
	"bvgboard/pkg/types"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// BVG yellow
const accent = "#F0D722"

var accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Bold(true)

// Theme returns the Charm theme with the BVG accent
func Theme() *huh.Theme {
	t := huh.ThemeCharm()
	p := lipgloss.Color(accent)

	t.Focused.Title = t.Focused.Title.Foreground(p).Bold(true)
	t.Focused.Base = t.Focused.Base.BorderForeground(p)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(p)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(p)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Foreground(lipgloss.Color("0")).Background(p)

	return t
}

// Store is where the editor reads and saves the station
type Store interface {
	Get() station.Station
	Update(station.Station) error
}

// NewStationForm builds the editor bound to id and label
func NewStationForm(id, label *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Station ID").
				Description("BVG stop ID, e.g. 900100003 for Alexanderplatz").
				Value(id).
				Validate(ValidateStopID),
			huh.NewInput().
				Title("Station Name").
				Description("Shown above the departures").
				Value(label).
				Validate(ValidateLabel),
		),
	).WithTheme(Theme())
}

// EditStation runs the editor against store. Cancelling leaves the station
// untouched and is not an error.
func EditStation(store Store) error {
	current := store.Get()
	id, label := string(current.StopID), current.Label

	if err := NewStationForm(&id, &label).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			slog.Info("Station editor cancelled")
			return nil
		}
		return err
	}

	saved, err := Apply(store, id, label)
	if err != nil {
		return err
	}
	if saved {
		fmt.Println(accentStyle.Render(fmt.Sprintf("Station set to %s (%s)", label, id)))
	}
	return nil
}

// Apply saves the edited values when they differ from the current station
func Apply(store Store, id, label string) (bool, error) {
	next := station.Station{
		StopID: types.StopQuery(strings.TrimSpace(id)),
		Label:  strings.TrimSpace(label),
	}
	if next == store.Get() {
		return false, nil
	}
	if err := store.Update(next); err != nil {
		return false, fmt.Errorf("failed to save station: %w", err)
	}
	return true, nil
}

func ValidateStopID(s string) error {
	st := station.Station{StopID: types.StopQuery(strings.TrimSpace(s)), Label: station.DefaultLabel}
	if err := st.Validate(); err != nil {
		return errors.New("enter a stop ID without spaces or slashes")
	}
	return nil
}

func ValidateLabel(s string) error {
	st := station.Station{StopID: station.DefaultStopID, Label: strings.TrimSpace(s)}
	if err := st.Validate(); err != nil {
		return errors.New("enter a name of at most 128 characters")
	}
	return nil
}
