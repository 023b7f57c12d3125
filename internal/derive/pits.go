package derive

import (
	"math"
	"strconv"
	"time"

	"github.com/pitwall/lt-relay/internal/state"
)

// PitEvent is one pit-lane transition derived from a TimingData delta.
// Exactly one of Enter and Record is set.
type PitEvent struct {
	Driver string
	Enter  *state.PitEntry
	Record *state.PitRecord
}

// Pits scans a TimingData delta for pit-lane transitions. inPits is the
// currently tracked set; lapsByDriver reads post-apply completed-lap
// counts. InPit opens an entry for an untracked driver (a repeat without
// PitOut is ignored), PitOut closes a tracked one and yields a record.
// Enter-then-exit within a single delta is honored.
func Pits(delta any, inPits map[string]state.PitEntry, lapsByDriver func(string) int, at time.Time, sessionKey, meetingKey *int) []PitEvent {
	lines := state.Map(delta, "Lines")
	if len(lines) == 0 {
		return nil
	}

	tracked := make(map[string]state.PitEntry, len(inPits))
	for k, v := range inPits {
		tracked[k] = v
	}

	var events []PitEvent
	for _, d := range sortedDrivers(lines) {
		upd, ok := lines[d].(map[string]any)
		if !ok {
			continue
		}

		if in, ok := upd["InPit"].(bool); ok && in {
			if _, already := tracked[d]; !already {
				e := state.PitEntry{EntryTime: at, LapNumber: lapsByDriver(d) + 1}
				tracked[d] = e
				events = append(events, PitEvent{Driver: d, Enter: &e})
			}
		}

		if out, ok := upd["PitOut"].(bool); ok && out {
			entry, already := tracked[d]
			if !already {
				continue
			}
			delete(tracked, d)
			num, err := strconv.Atoi(d)
			if err != nil {
				continue
			}
			rec := state.PitRecord{
				Date:         at,
				DriverNumber: num,
				LapNumber:    entry.LapNumber,
				PitDuration:  math.Round(at.Sub(entry.EntryTime).Seconds()*100) / 100,
				SessionKey:   sessionKey,
				MeetingKey:   meetingKey,
			}
			events = append(events, PitEvent{Driver: d, Record: &rec})
		}
	}
	return events
}
