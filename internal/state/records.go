package state

import "time"

// LapRecord is one completed lap, derived from a TimingData delta. Sector
// durations and speed-trap values are optional because deltas only carry
// what changed.
type LapRecord struct {
	DateStart       *time.Time `json:"date_start"`
	DriverNumber    int        `json:"driver_number"`
	LapNumber       int        `json:"lap_number"`
	LapDuration     float64    `json:"lap_duration"`
	DurationSector1 *float64   `json:"duration_sector_1"`
	DurationSector2 *float64   `json:"duration_sector_2"`
	DurationSector3 *float64   `json:"duration_sector_3"`
	I1Speed         *string    `json:"i1_speed"`
	I2Speed         *string    `json:"i2_speed"`
	STSpeed         *string    `json:"st_speed"`
	IsPitOutLap     bool       `json:"is_pit_out_lap"`
	SessionKey      *int       `json:"session_key"`
	MeetingKey      *int       `json:"meeting_key"`
}

// PitRecord is one completed pit stop. Date is the pit-exit time.
type PitRecord struct {
	Date         time.Time `json:"date"`
	DriverNumber int       `json:"driver_number"`
	LapNumber    int       `json:"lap_number"`
	PitDuration  float64   `json:"pit_duration"`
	SessionKey   *int      `json:"session_key"`
	MeetingKey   *int      `json:"meeting_key"`
}

// PitEntry tracks a driver currently in the pit lane.
type PitEntry struct {
	EntryTime time.Time `json:"entry_time"`
	LapNumber int       `json:"lap_number"`
}

// LapCount is the relay-derived lap counter. The upstream feed of the same
// name is known bad and never lands here.
type LapCount struct {
	CurrentLap int `json:"CurrentLap"`
	TotalLaps  int `json:"TotalLaps"`
}
