package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore() *Store { return New(zerolog.Nop()) }

func rcm(utc, category, message string) map[string]any {
	return map[string]any{"Utc": utc, "Category": category, "Message": message}
}

func TestApplyMergePolicy(t *testing.T) {
	s := newTestStore()
	s.Apply("TimingData", map[string]any{"Lines": map[string]any{"1": map[string]any{"Position": "1", "InPit": false}}})
	s.Apply("TimingData", map[string]any{"Lines": map[string]any{"1": map[string]any{"InPit": true}}})

	want := map[string]any{"Lines": map[string]any{"1": map[string]any{"Position": "1", "InPit": true}}}
	if got := s.Get("TimingData"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("TimingData = %#v, want %#v", got, want)
	}
}

func TestApplyMergeSequenceEqualsFold(t *testing.T) {
	deltas := []map[string]any{
		{"Lines": map[string]any{"1": map[string]any{"NumberOfLaps": float64(1), "Sectors": []any{"a", "b"}}}},
		{"Lines": map[string]any{"1": map[string]any{"Sectors": []any{"z"}}, "16": map[string]any{"Position": "3"}}},
		{"Lines": map[string]any{"16": map[string]any{"Position": "2"}}},
	}

	s := newTestStore()
	fold := map[string]any{}
	for _, d := range deltas {
		s.Apply("TimingData", d)
		fold = DeepMerge(fold, CloneMap(d))
	}
	if got := s.Get("TimingData"); !reflect.DeepEqual(got, any(fold)) {
		t.Errorf("applied sequence = %#v, fold = %#v", got, fold)
	}
}

func TestApplyMergeRejectsNonObject(t *testing.T) {
	s := newTestStore()
	s.Apply("DriverList", map[string]any{"1": map[string]any{"Tla": "VER"}})
	s.Apply("DriverList", []any{"not", "an", "object"})
	s.Apply("DriverList", "garbage")

	want := map[string]any{"1": map[string]any{"Tla": "VER"}}
	if got := s.Get("DriverList"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("DriverList = %#v, want %#v", got, want)
	}
}

func TestApplyAppendRaceControl(t *testing.T) {
	s := newTestStore()
	m1 := rcm("2023-05-28T13:00:00Z", "Flag", "GREEN LIGHT - PIT EXIT OPEN")
	m2 := rcm("2023-05-28T13:01:00Z", "Other", "RISK OF RAIN")
	m3 := rcm("2023-05-28T13:02:00Z", "Flag", "YELLOW IN TRACK SECTOR 1")
	m4 := rcm("2023-05-28T13:03:00Z", "Flag", "CLEAR IN TRACK SECTOR 1")
	m5 := rcm("2023-05-28T13:04:00Z", "Drs", "DRS ENABLED")

	s.Apply("RaceControlMessages", map[string]any{"Messages": []any{m1, m2}})
	s.Apply("RaceControlMessages", map[string]any{"Messages": map[string]any{"2": m3}})
	s.Apply("RaceControlMessages", []any{m4})
	s.Apply("RaceControlMessages", m5)

	want := []any{m1, m2, m3, m4, m5}
	if got := s.Get("RaceControlMessages"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("RaceControlMessages = %#v, want %#v", got, want)
	}
}

func TestApplyAppendRaceControlValidation(t *testing.T) {
	s := newTestStore()
	valid := rcm("2023-05-28T13:00:00Z", "Flag", "CHEQUERED FLAG")
	s.Apply("RaceControlMessages", map[string]any{"Messages": []any{
		valid,
		map[string]any{"Utc": "2023-05-28T13:00:01Z", "Message": "no category"},
		"not even an object",
	}})

	want := []any{valid}
	if got := s.Get("RaceControlMessages"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("RaceControlMessages = %#v, want %#v", got, want)
	}
}

func TestApplyAppendKeyedMessagesOrdered(t *testing.T) {
	s := newTestStore()
	m10 := rcm("t10", "Flag", "ten")
	m2 := rcm("t2", "Flag", "two")
	s.Apply("RaceControlMessages", map[string]any{"Messages": map[string]any{"10": m10, "2": m2}})

	want := []any{m2, m10}
	if got := s.Get("RaceControlMessages"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("keyed messages = %#v, want %#v", got, want)
	}
}

func TestApplyAppendTeamRadio(t *testing.T) {
	s := newTestStore()
	c1 := map[string]any{"Utc": "2023-05-28T13:05:00Z", "RacingNumber": "1", "Path": "TeamRadio/MAXVER01.mp3"}
	c2 := map[string]any{"RacingNumber": "44", "Path": "TeamRadio/LEWHAM01.mp3"}

	s.Apply("TeamRadio", map[string]any{"Captures": []any{c1}})
	s.Apply("TeamRadio", c2)

	// no field validation for team radio
	want := []any{c1, c2}
	if got := s.Get("TeamRadio"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("TeamRadio = %#v, want %#v", got, want)
	}
}

func TestApplyReplacePolicy(t *testing.T) {
	s := newTestStore()
	s.Apply("WeatherData", map[string]any{"AirTemp": "24.3", "Humidity": "52.0"})
	s.Apply("WeatherData", map[string]any{"AirTemp": "25.1"})

	want := map[string]any{"AirTemp": "25.1"}
	if got := s.Get("WeatherData"); !reflect.DeepEqual(got, any(want)) {
		t.Errorf("WeatherData = %#v, want %#v", got, want)
	}

	// feeds without a slot are stored too
	s.Apply("ExtrapolatedClock", map[string]any{"Remaining": "01:10:23"})
	if got := Str(s.Get("ExtrapolatedClock"), "Remaining"); got != "01:10:23" {
		t.Errorf("ExtrapolatedClock.Remaining = %q", got)
	}
}

func TestSnapshotIsAClone(t *testing.T) {
	s := newTestStore()
	s.Apply("DriverList", map[string]any{"1": map[string]any{"Tla": "VER"}})

	snap := s.Snapshot()
	Map(snap["DriverList"], "1")["Tla"] = "XXX"
	if got := Str(s.Get("DriverList"), "1", "Tla"); got != "VER" {
		t.Errorf("store mutated through snapshot: Tla = %q", got)
	}

	for _, slot := range []string{"LapCount", "LapHistory", "PitHistory", "DriversInPits"} {
		if _, ok := snap[slot]; !ok {
			t.Errorf("snapshot missing derived slot %s", slot)
		}
	}
}

func TestLapCounterBounds(t *testing.T) {
	s := newTestStore()
	if got := s.LapCounter(); got.CurrentLap != 1 || got.TotalLaps != 0 {
		t.Errorf("initial lap counter = %+v, want {1 0}", got)
	}
	if got := s.SetCurrentLap(0); got.CurrentLap != 1 {
		t.Errorf("SetCurrentLap(0) = %+v, want CurrentLap 1", got)
	}
	s.SetTotalLaps(78)
	if got := s.SetCurrentLap(3); got.CurrentLap != 3 || got.TotalLaps != 78 {
		t.Errorf("lap counter = %+v, want {3 78}", got)
	}
}

func TestPitTracking(t *testing.T) {
	s := newTestStore()
	first := PitEntry{EntryTime: time.Date(2023, 5, 28, 14, 0, 0, 0, time.UTC), LapNumber: 12}

	if !s.EnterPit("1", first) {
		t.Fatal("EnterPit rejected untracked driver")
	}
	if s.EnterPit("1", PitEntry{EntryTime: first.EntryTime.Add(5 * time.Second), LapNumber: 12}) {
		t.Error("second InPit without PitOut replaced the first entry")
	}
	if got := s.PitEntries()["1"]; got != first {
		t.Errorf("tracked entry = %+v, want %+v", got, first)
	}

	e, ok := s.ExitPit("1")
	if !ok || e != first {
		t.Errorf("ExitPit = %+v, %v, want %+v, true", e, ok, first)
	}
	if _, ok := s.ExitPit("1"); ok {
		t.Error("ExitPit reported a driver no longer tracked")
	}
	if n := len(s.PitEntries()); n != 0 {
		t.Errorf("PitEntries left %d entries, want 0", n)
	}
}

func TestSessionKeys(t *testing.T) {
	s := newTestStore()
	sk, mk := s.SessionKeys()
	if sk != nil || mk != nil {
		t.Errorf("empty store keys = %v, %v, want nil, nil", sk, mk)
	}

	s.Apply("SessionInfo", map[string]any{"Key": float64(9161), "Meeting": map[string]any{"Key": float64(1210)}})
	sk, mk = s.SessionKeys()
	if sk == nil || *sk != 9161 {
		t.Errorf("session key = %v, want 9161", sk)
	}
	if mk == nil || *mk != 1210 {
		t.Errorf("meeting key = %v, want 1210", mk)
	}
}

func TestHistoryCopies(t *testing.T) {
	s := newTestStore()
	s.AppendLap(LapRecord{DriverNumber: 1, LapNumber: 2, LapDuration: 104.634})
	s.AppendPit(PitRecord{DriverNumber: 1, LapNumber: 12, PitDuration: 24.37})

	laps := s.LapHistory()
	laps[0].LapNumber = 99
	if got := s.LapHistory()[0].LapNumber; got != 2 {
		t.Errorf("lap history mutated through copy: %d", got)
	}
	if got := len(s.PitHistory()); got != 1 {
		t.Errorf("pit history length = %d, want 1", got)
	}
}
