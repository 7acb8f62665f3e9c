package query

import (
	"sort"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/parse"
)

// FloorGroup is the set of stations sharing a floor.
type FloorGroup struct {
	Floor    int              `json:"floor"`
	Label    string           `json:"label"`
	Stations []engine.Station `json:"stations"`
	Summary  Summary          `json:"summary"`
}

// GroupByFloor groups stations by the floor parsed from their location.
// Stations whose location has no floor land in group 0, listed last.
func GroupByFloor(stations []engine.Station) []FloorGroup {
	byFloor := make(map[int][]engine.Station)
	for _, st := range stations {
		floor := 0
		if loc, err := parse.ParseLocation(st.Location); err == nil {
			floor = loc.Floor
		}
		byFloor[floor] = append(byFloor[floor], st)
	}

	floors := make([]int, 0, len(byFloor))
	for f := range byFloor {
		floors = append(floors, f)
	}
	sort.Slice(floors, func(i, j int) bool {
		if floors[i] == 0 || floors[j] == 0 {
			return floors[j] == 0 && floors[i] != 0
		}
		return floors[i] < floors[j]
	})

	groups := make([]FloorGroup, 0, len(floors))
	for _, f := range floors {
		members := byFloor[f]
		groups = append(groups, FloorGroup{
			Floor:    f,
			Label:    parse.FloorLabel(f),
			Stations: members,
			Summary:  Summarize(members),
		})
	}
	return groups
}
