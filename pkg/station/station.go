// Package station persists the stop shown on the board.
//
// The file holds two key=value lines, station_id and station_name, as read
// by the Kindle extension:
//
//	station_id=900100003
//	station_name=Alexanderplatz
package station

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"bvgboard/pkg/types"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultPath   = "/mnt/us/extensions/bvg/config.txt"
	DefaultStopID = "900100003"
	DefaultLabel  = "Alexanderplatz"

	keyStopID = "station_id"
	keyLabel  = "station_name"
)

// Station is the configured stop and the label drawn above its departures
type Station struct {
	StopID types.StopQuery `validate:"required,max=64,stopid"`
	Label  string          `validate:"required,max=128"`
}

// Default returns Alexanderplatz
func Default() Station {
	return Station{StopID: DefaultStopID, Label: DefaultLabel}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// A stop ID ends up as a URL path segment
	_ = v.RegisterValidation("stopid", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsSpace(r) || r == '/' || r == '?' || r == '#'
		})
	})
	return v
}

// Validate checks that s can be used to query the API and drawn on screen
func (s Station) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid station: %w", err)
	}
	return nil
}

// Load reads the station file at path. A missing file yields the defaults
// without an error. Keys missing from the file keep their default and lines
// without '=' are skipped. When the file cannot be read or holds an invalid
// station, the defaults are returned together with the error so the board
// can still start.
func Load(path string) (Station, error) {
	st := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("failed to read station file: %w", err)
	}

	values := parseLines(data)
	if v := strings.TrimSpace(values[keyStopID]); v != "" {
		st.StopID = types.StopQuery(v)
	}
	if v := strings.TrimSpace(values[keyLabel]); v != "" {
		st.Label = v
	}

	if err := st.Validate(); err != nil {
		return Default(), err
	}
	return st, nil
}

// parseLines splits each line on its first '='. Bare values are taken
// literally, so '#' and '$' need no quoting in hand-written files. Values
// wrapped in quotes are unquoted with dotenv rules, matching formatValue.
func parseLines(data []byte) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if quoted(value) {
			if m, err := godotenv.Unmarshal("v=" + value); err == nil {
				value = m["v"]
			}
		}
		values[key] = value
	}
	return values
}

func quoted(v string) bool {
	if len(v) < 2 {
		return false
	}
	q := v[0]
	return (q == '\'' || q == '"') && v[len(v)-1] == q
}

// Save rewrites the whole station file. The new content is written to a
// temporary file first and renamed into place.
func Save(path string, st Station) error {
	if err := st.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create station directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s=%s\n", keyStopID, formatValue(string(st.StopID)))
	fmt.Fprintf(&buf, "%s=%s\n", keyLabel, formatValue(st.Label))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".station-*")
	if err != nil {
		return fmt.Errorf("failed to create temp station file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write station file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write station file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set station file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace station file: %w", err)
	}
	return nil
}

// formatValue leaves plain values bare so the file stays readable by simple
// key=value readers, and quotes anything godotenv would mangle.
func formatValue(v string) string {
	plain := !strings.ContainsFunc(v, func(r rune) bool {
		switch r {
		case '"', '\'', '\\', '$', '#', '`', '\n', '\r':
			return true
		}
		return false
	}) && strings.TrimSpace(v) == v

	switch {
	case plain:
		return v
	case !strings.ContainsAny(v, "'\n\r") && !strings.HasSuffix(v, `\`):
		return "'" + v + "'"
	default:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(v) + `"`
	}
}
