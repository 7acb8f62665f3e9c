package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	floorRe = regexp.MustCompile(`(?i)\b(?:floor|level|fl\.?)\s*#?\s*(\d+)\b|\b(\d+)\s*(?:F|/F)\b`)
	sepRe   = regexp.MustCompile(`\s*[,;|/-]\s*`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ParsedLocation holds the structured data parsed from a station's location.
type ParsedLocation struct {
	Floor int
	Wing  string
}

// ParseLocation extracts the floor number and wing from a raw location string
// such as "Floor 1, West Wing" or "2F East Wing".
func ParseLocation(raw string) (ParsedLocation, error) {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))

	loc := floorRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return ParsedLocation{}, fmt.Errorf("unable to parse floor from location: %q", raw)
	}
	var digits string
	if loc[2] >= 0 {
		digits = s[loc[2]:loc[3]]
	} else {
		digits = s[loc[4]:loc[5]]
	}
	floor, err := strconv.Atoi(digits)
	if err != nil {
		return ParsedLocation{}, fmt.Errorf("unable to parse floor from location: %q", raw)
	}

	// Whatever is left once the floor token is cut out names the wing.
	rest := strings.TrimSpace(s[:loc[0]] + " " + s[loc[1]:])
	parts := sepRe.Split(rest, -1)
	wing := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			wing = append(wing, p)
		}
	}
	return ParsedLocation{Floor: floor, Wing: strings.Join(wing, " ")}, nil
}

// FloorLabel renders a floor number for grouping.
func FloorLabel(floor int) string {
	if floor <= 0 {
		return "Unassigned"
	}
	return "Floor " + strconv.Itoa(floor)
}
