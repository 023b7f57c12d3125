package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/pitwall/lt-relay/internal/clock"
	"github.com/pitwall/lt-relay/internal/state"
)

// Recordings live on the upstream static host under the session path.
const teamRadioBase = "https://livetiming.formula1.com/static/"

// Handlers serves the REST projections of the live store.
type Handlers struct {
	store StateSource
	now   clock.Clock
	log   zerolog.Logger
}

func NewHandlers(store StateSource, log zerolog.Logger) *Handlers {
	return &Handlers{
		store: store,
		now:   clock.System,
		log:   log.With().Str("component", "api").Logger(),
	}
}

// Drivers serves GET /api/drivers.
func (h *Handlers) Drivers(w http.ResponseWriter, r *http.Request) {
	driverList := state.Map(h.store.Get("DriverList"))

	out := make([]Driver, 0, len(driverList))
	for _, key := range numericKeys(driverList) {
		d, ok := driverList[key].(map[string]any)
		if !ok {
			// skip bookkeeping entries such as "_kf": true
			continue
		}
		out = append(out, Driver{
			BroadcastName: state.Str(d, "BroadcastName"),
			CountryCode:   optStr(d, "CountryCode"),
			DriverNumber:  state.Int(d, "RacingNumber"),
			FirstName:     optStr(d, "FirstName"),
			FullName:      state.Str(d, "FullName"),
			HeadshotURL:   optStr(d, "HeadshotUrl"),
			LastName:      optStr(d, "LastName"),
			NameAcronym:   state.Str(d, "Tla"),
			TeamColour:    optStr(d, "TeamColour"),
			TeamName:      optStr(d, "TeamName"),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Laps serves GET /api/laps; ?driver_number= filters.
func (h *Handlers) Laps(w http.ResponseWriter, r *http.Request) {
	laps := h.store.LapHistory()
	if driver, ok := QueryInt(r, "driver_number"); ok {
		filtered := laps[:0]
		for _, l := range laps {
			if l.DriverNumber == driver {
				filtered = append(filtered, l)
			}
		}
		laps = filtered
	}
	if laps == nil {
		laps = []state.LapRecord{}
	}
	WriteJSON(w, http.StatusOK, laps)
}

// PitStops serves GET /api/pit; ?driver_number= filters.
func (h *Handlers) PitStops(w http.ResponseWriter, r *http.Request) {
	pits := h.store.PitHistory()
	if driver, ok := QueryInt(r, "driver_number"); ok {
		filtered := pits[:0]
		for _, p := range pits {
			if p.DriverNumber == driver {
				filtered = append(filtered, p)
			}
		}
		pits = filtered
	}
	if pits == nil {
		pits = []state.PitRecord{}
	}
	WriteJSON(w, http.StatusOK, pits)
}

// Intervals serves GET /api/intervals.
func (h *Handlers) Intervals(w http.ResponseWriter, r *http.Request) {
	lines := h.store.TimingLines()
	sessionKey, meetingKey := h.store.SessionKeys()
	date := clock.FormatISO(h.now())

	out := make([]Interval, 0, len(lines))
	for _, key := range numericKeys(lines) {
		line, ok := lines[key].(map[string]any)
		if !ok {
			continue
		}
		num, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out = append(out, Interval{
			Date:         date,
			DriverNumber: num,
			GapToLeader:  optFloat(state.Str(line, "GapToLeader")),
			Interval:     optFloat(state.Str(line, "IntervalToPositionAhead", "Value")),
			MeetingKey:   meetingKey,
			SessionKey:   sessionKey,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Locations serves GET /api/location and GET /api/position: the latest
// x/y/z sample per car.
func (h *Handlers) Locations(w http.ResponseWriter, r *http.Request) {
	sessionKey, meetingKey := h.store.SessionKeys()
	snapshots := state.List(h.store.Get("Position"), "Position")
	if len(snapshots) == 0 {
		WriteJSON(w, http.StatusOK, []Location{})
		return
	}
	latest := snapshots[len(snapshots)-1]
	date := state.Str(latest, "Timestamp")
	entries := state.Map(latest, "Entries")

	out := make([]Location, 0, len(entries))
	for _, key := range numericKeys(entries) {
		num, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		e := entries[key]
		out = append(out, Location{
			Date:         date,
			DriverNumber: num,
			MeetingKey:   meetingKey,
			SessionKey:   sessionKey,
			X:            state.Int(e, "X"),
			Y:            state.Int(e, "Y"),
			Z:            state.Int(e, "Z"),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// CarData serves GET /api/car_data: the most recent telemetry sample per
// car. Channel assignments follow the upstream convention: 0 rpm, 2 speed,
// 3 gear, 4 throttle, 5 brake (boolean), 45 DRS.
func (h *Handlers) CarData(w http.ResponseWriter, r *http.Request) {
	sessionKey, meetingKey := h.store.SessionKeys()
	entries := state.List(h.store.Get("CarData"), "Entries")
	if len(entries) == 0 {
		WriteJSON(w, http.StatusOK, []CarSample{})
		return
	}
	latest := entries[len(entries)-1]
	date := state.Str(latest, "Utc")
	cars := state.Map(latest, "Cars")

	out := make([]CarSample, 0, len(cars))
	for _, key := range numericKeys(cars) {
		num, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		channels := state.Map(cars[key], "Channels")
		brake := 0
		if state.Int(channels, "5") == 1 {
			brake = 100
		}
		out = append(out, CarSample{
			Brake:        brake,
			Date:         date,
			DriverNumber: num,
			DRS:          state.Int(channels, "45"),
			MeetingKey:   meetingKey,
			NGear:        state.Int(channels, "3"),
			RPM:          state.Int(channels, "0"),
			SessionKey:   sessionKey,
			Speed:        state.Int(channels, "2"),
			Throttle:     state.Int(channels, "4"),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Meetings serves GET /api/meetings.
func (h *Handlers) Meetings(w http.ResponseWriter, r *http.Request) {
	si := state.Map(h.store.Get("SessionInfo"))
	if len(si) == 0 {
		WriteJSON(w, http.StatusOK, []Meeting{})
		return
	}
	meeting := state.Map(si, "Meeting")
	country := state.Map(meeting, "Country")
	circuit := state.Map(meeting, "Circuit")

	WriteJSON(w, http.StatusOK, []Meeting{{
		CircuitKey:          optInt(circuit, "Key"),
		CircuitShortName:    optStr(circuit, "ShortName"),
		CountryCode:         optStr(country, "Code"),
		CountryKey:          optInt(country, "Key"),
		CountryName:         optStr(country, "Name"),
		DateStart:           optStr(si, "StartDate"),
		GmtOffset:           optStr(si, "GmtOffset"),
		Location:            optStr(meeting, "Location"),
		MeetingKey:          optInt(meeting, "Key"),
		MeetingName:         optStr(meeting, "Name"),
		MeetingOfficialName: optStr(meeting, "OfficialName"),
		Year:                yearOf(state.Str(si, "StartDate")),
	}})
}

// Sessions serves GET /api/sessions.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	si := state.Map(h.store.Get("SessionInfo"))
	if len(si) == 0 {
		WriteJSON(w, http.StatusOK, []Session{})
		return
	}
	meeting := state.Map(si, "Meeting")
	country := state.Map(meeting, "Country")
	circuit := state.Map(meeting, "Circuit")

	WriteJSON(w, http.StatusOK, []Session{{
		CircuitKey:       optInt(circuit, "Key"),
		CircuitShortName: optStr(circuit, "ShortName"),
		CountryCode:      optStr(country, "Code"),
		CountryKey:       optInt(country, "Key"),
		CountryName:      optStr(country, "Name"),
		DateEnd:          optStr(si, "EndDate"),
		DateStart:        optStr(si, "StartDate"),
		GmtOffset:        optStr(si, "GmtOffset"),
		Location:         optStr(meeting, "Location"),
		MeetingKey:       optInt(meeting, "Key"),
		SessionKey:       optInt(si, "Key"),
		SessionName:      optStr(si, "Name"),
		SessionType:      optStr(si, "Type"),
		Year:             yearOf(state.Str(si, "StartDate")),
	}})
}

// Stints serves GET /api/stints. Stints arrive as a list or a sparse
// numerically-keyed map per driver; both are normalized.
func (h *Handlers) Stints(w http.ResponseWriter, r *http.Request) {
	sessionKey, meetingKey := h.store.SessionKeys()
	lines := state.Map(h.store.Get("TimingAppData"), "Lines")

	var out []Stint
	for _, key := range numericKeys(lines) {
		num, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		line, ok := lines[key].(map[string]any)
		if !ok {
			continue
		}
		for i, s := range state.Items(line["Stints"]) {
			stint, ok := s.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, Stint{
				Compound:       optStr(stint, "Compound"),
				DriverNumber:   num,
				LapEnd:         optInt(stint, "TotalLaps"),
				LapStart:       optInt(stint, "StartLaps"),
				MeetingKey:     meetingKey,
				SessionKey:     sessionKey,
				StintNumber:    i + 1,
				TyreAgeAtStart: optInt(stint, "TyresNotChanged"),
			})
		}
	}
	if out == nil {
		out = []Stint{}
	}
	WriteJSON(w, http.StatusOK, out)
}

// TeamRadio serves GET /api/team_radio. Recording URLs are assembled from
// the upstream static base and the session path.
func (h *Handlers) TeamRadio(w http.ResponseWriter, r *http.Request) {
	sessionKey, meetingKey := h.store.SessionKeys()
	sessionPath := state.Str(h.store.Get("SessionInfo"), "Path")
	captures, _ := h.store.Get("TeamRadio").([]any)

	out := make([]RadioCapture, 0, len(captures))
	for _, c := range captures {
		capture, ok := c.(map[string]any)
		if !ok {
			continue
		}
		path := state.Str(capture, "Path")
		if path == "" {
			continue
		}
		out = append(out, RadioCapture{
			Date:         state.Str(capture, "Utc"),
			DriverNumber: state.Int(capture, "RacingNumber"),
			MeetingKey:   meetingKey,
			RecordingURL: teamRadioBase + sessionPath + path,
			SessionKey:   sessionKey,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Weather serves GET /api/weather.
func (h *Handlers) Weather(w http.ResponseWriter, r *http.Request) {
	wd := state.Map(h.store.Get("WeatherData"))
	if len(wd) == 0 {
		WriteJSON(w, http.StatusOK, []Weather{})
		return
	}
	sessionKey, meetingKey := h.store.SessionKeys()

	WriteJSON(w, http.StatusOK, []Weather{{
		AirTemperature:   floatOf(wd["AirTemp"]),
		Date:             clock.FormatISO(h.now()),
		Humidity:         floatOf(wd["Humidity"]),
		MeetingKey:       meetingKey,
		Pressure:         floatOf(wd["Pressure"]),
		Rainfall:         state.Int(wd, "Rainfall"),
		SessionKey:       sessionKey,
		TrackTemperature: floatOf(wd["TrackTemp"]),
		WindDirection:    state.Int(wd, "WindDirection"),
		WindSpeed:        floatOf(wd["WindSpeed"]),
	}})
}

// RaceControl serves GET /api/race_control, in arrival order.
func (h *Handlers) RaceControl(w http.ResponseWriter, r *http.Request) {
	sessionKey, meetingKey := h.store.SessionKeys()
	messages, _ := h.store.Get("RaceControlMessages").([]any)

	out := make([]RaceControl, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, RaceControl{
			Category:     state.Str(msg, "Category"),
			Date:         state.Str(msg, "Utc"),
			DriverNumber: optInt(msg, "RacingNumber"),
			Flag:         optStr(msg, "Flag"),
			LapNumber:    optInt(msg, "Lap"),
			MeetingKey:   meetingKey,
			Message:      state.Str(msg, "Message"),
			Scope:        optStr(msg, "Scope"),
			Sector:       optInt(msg, "Sector"),
			SessionKey:   sessionKey,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Leaderboard serves GET /api/leaderboard: timing, identity, tyre, and
// lap-history data joined per driver, sorted by race position.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lines := h.store.TimingLines()
	driverList := state.Map(h.store.Get("DriverList"))
	appLines := state.Map(h.store.Get("TimingAppData"), "Lines")
	laps := h.store.LapHistory()

	lastLap := make(map[int]float64, len(lines))
	for _, l := range laps {
		lastLap[l.DriverNumber] = l.LapDuration
	}

	out := make([]LeaderboardEntry, 0, len(lines))
	for _, key := range numericKeys(lines) {
		line, ok := lines[key].(map[string]any)
		if !ok {
			continue
		}
		num, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		info := state.Map(driverList, key)

		entry := LeaderboardEntry{
			Position:         99,
			Name:             "Unknown",
			ShortName:        "N/A",
			DriverNumber:     num,
			Team:             "N/A",
			TeamColor:        optStr(info, "TeamColour"),
			HeadshotURL:      optStr(info, "HeadshotUrl"),
			GapToLeader:      optStr(line, "GapToLeader"),
			Interval:         optStr(state.Map(line, "IntervalToPositionAhead"), "Value"),
			NumberOfPitStops: state.Int(line, "NumberOfPitStops"),
			KnockedOut:       state.Bool(line, "KnockedOut"),
			Retired:          state.Bool(line, "Retired"),
		}
		if p := state.Int(line, "Position"); p != 0 {
			entry.Position = p
		}
		if name := state.Str(info, "FullName"); name != "" {
			entry.Name = name
		}
		if tla := state.Str(info, "Tla"); tla != "" {
			entry.ShortName = tla
		}
		if team := state.Str(info, "TeamName"); team != "" {
			entry.Team = team
		}
		// the leader has no car ahead
		if entry.Position == 1 {
			entry.Interval = nil
		}
		if d, ok := lastLap[num]; ok {
			entry.LastLapTime = &d
		}
		if best, ok := clock.ParseDuration(state.Str(line, "BestLapTime", "Value")); ok {
			entry.BestLapTime = &best
		}
		if stints := state.Items(state.Map(appLines, key)["Stints"]); len(stints) > 0 {
			entry.Tyre = optStr(state.Map(stints[len(stints)-1]), "Compound")
		}
		entry.SectorTimes = make([]*float64, 3)
		for i := 0; i < 3; i++ {
			if v, ok := clock.ParseDuration(state.Str(state.Item(line["Sectors"], i), "Value")); ok {
				entry.SectorTimes[i] = &v
			}
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	WriteJSON(w, http.StatusOK, out)
}

// projection helpers

// numericKeys orders map keys numerically so responses are stable across
// requests.
func numericKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
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

func optStr(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return nil
	}
	return &s
}

func optInt(m map[string]any, key string) *int {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil
	}
	return &n
}

// optFloat parses the numeric gap strings; text such as "LAP 2" reads as
// null.
func optFloat(s string) *float64 {
	f, ok := clock.Float(s)
	if !ok {
		return nil
	}
	return &f
}

func floatOf(v any) float64 {
	f, _ := clock.Float(v)
	return f
}

func yearOf(iso string) *int {
	t, err := clock.ParseISO(iso)
	if err != nil {
		return nil
	}
	y := t.Year()
	return &y
}
