package display

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// BVG line colours
var lineColors = map[string]string{
	"U1": "#7DAD4C",
	"U2": "#DA421E",
	"U3": "#16683D",
	"U4": "#F0D722",
	"U5": "#7E5330",
	"U6": "#8C6DAB",
	"U7": "#528DBA",
	"U8": "#224F86",
	"U9": "#F3791D",

	"S1":  "#DE4DA4",
	"S2":  "#005F27",
	"S25": "#005F27",
	"S26": "#005F27",
	"S3":  "#0A4C99",
	"S41": "#AD5937",
	"S42": "#CB6418",
	"S45": "#CD9C53",
	"S46": "#CD9C53",
	"S47": "#CD9C53",
	"S5":  "#EB7405",
	"S7":  "#816DA6",
	"S75": "#816DA6",
	"S8":  "#66AA22",
	"S85": "#66AA22",
	"S9":  "#992746",
}

const (
	tramColor     = "#BE1414"
	regionalColor = "#E2001A"
	busColor      = "#95276E"
)

// LineColor returns a hex colour for a line name. Unknown lines get a
// stable colour derived from the name.
func LineColor(line string) string {
	name := strings.ToUpper(strings.TrimSpace(line))
	if c, ok := lineColors[name]; ok {
		return c
	}

	switch {
	case name == "":
		return busColor
	case strings.HasPrefix(name, "M") && len(name) > 1 && isDigits(name[1:]):
		return tramColor
	case strings.HasPrefix(name, "RE") || strings.HasPrefix(name, "RB"):
		return regionalColor
	case isDigits(name), strings.HasPrefix(name, "X"), strings.HasPrefix(name, "N"):
		return busColor
	}

	hash := 0
	for _, char := range name {
		hash = int(char) + ((hash << 5) - hash)
	}
	hue := float64((hash%360 + 360) % 360)
	return colorful.Hsl(hue, 0.7, 0.5).Hex()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
