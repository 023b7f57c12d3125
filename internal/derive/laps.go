package derive

import (
	"strconv"
	"time"

	"github.com/pitwall/lt-relay/internal/clock"
	"github.com/pitwall/lt-relay/internal/state"
)

// Laps emits one record per driver in the delta that reports a completed
// LastLapTime. prior is the pre-apply TimingData lines tree; each driver's
// merged view is transient and never written back.
func Laps(prior map[string]any, delta any, at time.Time, sessionKey, meetingKey *int) []state.LapRecord {
	lines := state.Map(delta, "Lines")
	if len(lines) == 0 {
		return nil
	}

	var recs []state.LapRecord
	for _, d := range sortedDrivers(lines) {
		upd, ok := lines[d].(map[string]any)
		if !ok {
			continue
		}
		dur, ok := clock.ParseDuration(state.Str(upd, "LastLapTime", "Value"))
		if !ok {
			continue
		}
		num, err := strconv.Atoi(d)
		if err != nil {
			continue
		}

		merged := state.DeepMerge(state.CloneMap(state.Map(prior[d])), upd)
		lapNumber := state.Int(merged, "NumberOfLaps")
		if lapNumber == 0 {
			continue
		}

		rec := state.LapRecord{
			DriverNumber: num,
			LapNumber:    lapNumber,
			LapDuration:  dur,
			IsPitOutLap:  state.Bool(merged, "PitOut"),
			SessionKey:   sessionKey,
			MeetingKey:   meetingKey,
		}
		if !at.IsZero() {
			start := at.Add(-time.Duration(dur * float64(time.Second)))
			rec.DateStart = &start
		}
		sectors := merged["Sectors"]
		rec.DurationSector1 = sectorSeconds(sectors, 0)
		rec.DurationSector2 = sectorSeconds(sectors, 1)
		rec.DurationSector3 = sectorSeconds(sectors, 2)
		rec.I1Speed = speedValue(merged, "I1")
		rec.I2Speed = speedValue(merged, "I2")
		rec.STSpeed = speedValue(merged, "ST")

		recs = append(recs, rec)
	}
	return recs
}

// sectorSeconds reads Sectors[i].Value, tolerating both the list and the
// sparse numerically-keyed shapes.
func sectorSeconds(sectors any, i int) *float64 {
	if v, ok := clock.ParseDuration(state.Str(state.Item(sectors, i), "Value")); ok {
		return &v
	}
	return nil
}

func speedValue(merged map[string]any, trap string) *string {
	if s := state.Str(merged, "Speeds", trap, "Value"); s != "" {
		return &s
	}
	return nil
}

// LapTracker keeps per-driver high-water marks so a lap repeated across
// several deltas is recorded once.
type LapTracker struct {
	last map[int]int
}

func NewLapTracker() *LapTracker {
	return &LapTracker{last: make(map[int]int)}
}

// Fresh reports whether lap is newer than anything recorded for the driver
// and marks it recorded when it is.
func (t *LapTracker) Fresh(driver, lap int) bool {
	if lap <= t.last[driver] {
		return false
	}
	t.last[driver] = lap
	return true
}
