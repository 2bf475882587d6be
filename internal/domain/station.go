package domain

const (
	// UnassignedFeeder is the feeder given to stations imported without one.
	UnassignedFeeder = "Unassigned"

	// AllFeeders is the feeder scope that disables per-feeder filtering.
	AllFeeders = "ALL"
)

// Station is a single substation serving a known number of consumers.
type Station struct {
	ID        string `json:"id"`
	Feeder    string `json:"feeder"`
	Name      string `json:"name"`
	Consumers int    `json:"consumers"`
	IsOut     bool   `json:"isOut"`
}

// ToggleStation flips the manual outage flag of the station with the given ID
// in place. It reports the new flag and whether the station was found.
func ToggleStation(stations []Station, id string) (bool, bool) {
	for i := range stations {
		if stations[i].ID == id {
			stations[i].IsOut = !stations[i].IsOut
			return stations[i].IsOut, true
		}
	}
	return false, false
}
