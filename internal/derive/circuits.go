// Package derive turns low-level TimingData deltas into racing facts: lap
// records, pit-stop records, and a corrected lap counter. The upstream
// LapCount feed is known bad and is never consulted.
package derive

import (
	"sort"
	"strconv"

	"github.com/pitwall/lt-relay/internal/state"
)

// circuitLaps maps upstream Meeting.Circuit.ShortName values to race
// distances in laps.
var circuitLaps = map[string]int{
	"Monte Carlo":       78,
	"Silverstone":       52,
	"Spa-Francorchamps": 44,
	"Monza":             53,
	"Bahrain":           57,
	"Jeddah":            50,
	"Albert Park":       58,
	"Imola":             63,
	"Miami":             57,
	"Catalunya":         66,
	"Gilles-Villeneuve": 70,
	"Red Bull Ring":     71,
	"Hungaroring":       70,
	"Zandvoort":         72,
	"Marina Bay":        62,
	"Suzuka":            53,
	"COTA":              56,
	"Mexico City":       71,
	"Interlagos":        71,
	"Las Vegas":         50,
	"Losail":            57,
	"Yas Marina":        58,
	"Shanghai":          56,
	"Baku":              51,
}

// CircuitLaps returns the race distance for a circuit short name, 0 when
// unknown.
func CircuitLaps(shortName string) int { return circuitLaps[shortName] }

// CurrentLap derives the running lap number from TimingData lines: one more
// than the highest completed lap count, never below 1.
func CurrentLap(lines map[string]any) int {
	max := 0
	for _, line := range lines {
		if n := state.Int(line, "NumberOfLaps"); n > max {
			max = n
		}
	}
	return max + 1
}

// sortedDrivers orders line keys numerically so derived events are emitted
// in a stable order regardless of map iteration.
func sortedDrivers(lines map[string]any) []string {
	keys := make([]string, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, ea := strconv.Atoi(keys[i])
		b, eb := strconv.Atoi(keys[j])
		switch {
		case ea == nil && eb == nil:
			return a < b
		case ea == nil:
			return true
		case eb == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
