// Package state holds the authoritative in-memory model of the session:
// raw feed slots updated under per-feed policies, plus the relay-derived
// lap and pit data.
package state

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Policy is how Apply treats an incoming payload for a slot.
type Policy int

const (
	PolicyReplace Policy = iota
	PolicyMerge
	PolicyAppend
)

// policies maps feed names to their update policy. Feeds not listed are
// replaced wholesale.
var policies = map[string]Policy{
	"DriverList":          PolicyMerge,
	"TimingData":          PolicyMerge,
	"TimingAppData":       PolicyMerge,
	"TimingStats":         PolicyMerge,
	"TopThree":            PolicyMerge,
	"RaceControlMessages": PolicyAppend,
	"TeamRadio":           PolicyAppend,
}

// PolicyFor returns the update policy for a feed name.
func PolicyFor(feed string) Policy { return policies[feed] }

// Store is the single source of truth for session state. One writer (the
// ingest pipeline), many readers (API handlers, snapshot fan-out). Reads
// hand out deep clones so callers can never alias internal trees.
type Store struct {
	mu    sync.RWMutex
	feeds map[string]any

	lapCount   LapCount
	lapHistory []LapRecord
	pitHistory []PitRecord
	inPits     map[string]PitEntry

	log zerolog.Logger
}

func New(log zerolog.Logger) *Store {
	return &Store{
		feeds: map[string]any{
			"DriverList":          map[string]any{},
			"TimingData":          map[string]any{},
			"TimingStats":         map[string]any{},
			"TimingAppData":       map[string]any{},
			"TopThree":            map[string]any{},
			"CarData":             map[string]any{},
			"Position":            map[string]any{},
			"RaceControlMessages": []any{},
			"TeamRadio":           []any{},
			"SessionInfo":         map[string]any{},
			"SessionStatus":       map[string]any{},
			"TrackStatus":         map[string]any{},
			"WeatherData":         map[string]any{},
		},
		lapCount: LapCount{CurrentLap: 1},
		inPits:   make(map[string]PitEntry),
		log:      log.With().Str("component", "state").Logger(),
	}
}

// Apply stores payload into the slot for feed according to its policy.
func (s *Store) Apply(feed string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch policies[feed] {
	case PolicyMerge:
		src, ok := payload.(map[string]any)
		if !ok {
			s.log.Warn().Str("feed", feed).Msg("merge payload is not an object, dropped")
			return
		}
		dst, _ := s.feeds[feed].(map[string]any)
		s.feeds[feed] = DeepMerge(dst, CloneMap(src))
	case PolicyAppend:
		s.appendLocked(feed, payload)
	default:
		s.feeds[feed] = Clone(payload)
	}
}

func (s *Store) appendLocked(feed string, payload any) {
	cur, _ := s.feeds[feed].([]any)
	for _, item := range flatten(feed, payload) {
		if feed == "RaceControlMessages" && !validMessage(item) {
			s.log.Warn().Str("feed", feed).Msg("message missing required fields, dropped")
			continue
		}
		cur = append(cur, Clone(item))
	}
	s.feeds[feed] = cur
}

// flatten unwraps the carrier shapes append feeds arrive in: race control
// wraps messages in "Messages", team radio in "Captures". Snapshots carry
// lists, incremental frames carry objects keyed by sequence number, and
// both also appear as bare lists or single objects.
func flatten(feed string, payload any) []any {
	wrapper := "Messages"
	if feed == "TeamRadio" {
		wrapper = "Captures"
	}
	switch x := payload.(type) {
	case []any:
		return x
	case map[string]any:
		inner, ok := x[wrapper]
		if !ok {
			return []any{x}
		}
		switch in := inner.(type) {
		case []any:
			return in
		case map[string]any:
			idx := make([]int, 0, len(in))
			for k := range in {
				if n, err := strconv.Atoi(k); err == nil {
					idx = append(idx, n)
				}
			}
			sort.Ints(idx)
			out := make([]any, 0, len(idx))
			for _, n := range idx {
				out = append(out, in[strconv.Itoa(n)])
			}
			return out
		}
	}
	return nil
}

func validMessage(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range []string{"Utc", "Category", "Message"} {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// Get returns a deep copy of one feed slot, nil when absent.
func (s *Store) Get(feed string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.feeds[feed]
	if !ok {
		return nil
	}
	return Clone(v)
}

// Snapshot returns a deep copy of the full state tree, derived slots
// included.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.feeds)+4)
	for k, v := range s.feeds {
		out[k] = Clone(v)
	}
	out["LapCount"] = s.lapCount
	out["LapHistory"] = append([]LapRecord(nil), s.lapHistory...)
	out["PitHistory"] = append([]PitRecord(nil), s.pitHistory...)
	pits := make(map[string]PitEntry, len(s.inPits))
	for k, v := range s.inPits {
		pits[k] = v
	}
	out["DriversInPits"] = pits
	return out
}

// SnapshotJSON marshals the full state tree, for fan-out and the shutdown
// state file.
func (s *Store) SnapshotJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// TimingLines returns a deep copy of TimingData.Lines keyed by driver.
func (s *Store) TimingLines() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := Map(s.feeds["TimingData"], "Lines")
	if lines == nil {
		return map[string]any{}
	}
	return CloneMap(lines)
}

// SessionKeys returns the upstream session and meeting keys when known.
func (s *Store) SessionKeys() (sessionKey, meetingKey *int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	si := s.feeds["SessionInfo"]
	if v := Int(si, "Key"); v != 0 {
		sessionKey = &v
	}
	if v := Int(si, "Meeting", "Key"); v != 0 {
		meetingKey = &v
	}
	return
}

// LapCounter returns the current derived lap counter.
func (s *Store) LapCounter() LapCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lapCount
}

// SetCurrentLap updates the derived current lap.
func (s *Store) SetCurrentLap(n int) LapCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.lapCount.CurrentLap = n
	return s.lapCount
}

// SetTotalLaps records the race distance from the circuit table.
func (s *Store) SetTotalLaps(n int) LapCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapCount.TotalLaps = n
	return s.lapCount
}

// AppendLap appends a completed lap to the derived history.
func (s *Store) AppendLap(rec LapRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapHistory = append(s.lapHistory, rec)
}

// AppendPit appends a completed pit stop to the derived history.
func (s *Store) AppendPit(rec PitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitHistory = append(s.pitHistory, rec)
}

// LapHistory returns a copy of the derived lap records.
func (s *Store) LapHistory() []LapRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LapRecord(nil), s.lapHistory...)
}

// PitHistory returns a copy of the derived pit records.
func (s *Store) PitHistory() []PitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PitRecord(nil), s.pitHistory...)
}

// EnterPit starts tracking a driver in the pit lane. The first entry wins;
// a repeated InPit without an intervening PitOut reports false.
func (s *Store) EnterPit(driver string, e PitEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, tracked := s.inPits[driver]; tracked {
		return false
	}
	s.inPits[driver] = e
	return true
}

// ExitPit stops tracking a driver and returns the entry, if any.
func (s *Store) ExitPit(driver string) (PitEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.inPits[driver]
	if ok {
		delete(s.inPits, driver)
	}
	return e, ok
}

// PitEntries returns a copy of the currently tracked pit-lane set.
func (s *Store) PitEntries() map[string]PitEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PitEntry, len(s.inPits))
	for k, v := range s.inPits {
		out[k] = v
	}
	return out
}
