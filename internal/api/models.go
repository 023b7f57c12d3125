package api

// Consumer-facing record shapes. Field names are the stable public
// contract; the upstream PascalCase names they are projected from are
// internal.

// Driver is one entry of /api/drivers.
type Driver struct {
	BroadcastName string  `json:"broadcast_name"`
	CountryCode   *string `json:"country_code"`
	DriverNumber  int     `json:"driver_number"`
	FirstName     *string `json:"first_name"`
	FullName      string  `json:"full_name"`
	HeadshotURL   *string `json:"headshot_url"`
	LastName      *string `json:"last_name"`
	NameAcronym   string  `json:"name_acronym"`
	TeamColour    *string `json:"team_colour"`
	TeamName      *string `json:"team_name"`
}

// CarSample is one entry of /api/car_data: the latest telemetry sample
// for one car.
type CarSample struct {
	Brake        int    `json:"brake"`
	Date         string `json:"date"`
	DriverNumber int    `json:"driver_number"`
	DRS          int    `json:"drs"`
	MeetingKey   *int   `json:"meeting_key"`
	NGear        int    `json:"n_gear"`
	RPM          int    `json:"rpm"`
	SessionKey   *int   `json:"session_key"`
	Speed        int    `json:"speed"`
	Throttle     int    `json:"throttle"`
}

// Interval is one entry of /api/intervals. Gap fields are null when the
// upstream reports text ("LAP 2", "+1 LAP") instead of a number.
type Interval struct {
	Date         string   `json:"date"`
	DriverNumber int      `json:"driver_number"`
	GapToLeader  *float64 `json:"gap_to_leader"`
	Interval     *float64 `json:"interval"`
	MeetingKey   *int     `json:"meeting_key"`
	SessionKey   *int     `json:"session_key"`
}

// Location is one entry of /api/location and /api/position.
type Location struct {
	Date         string `json:"date"`
	DriverNumber int    `json:"driver_number"`
	MeetingKey   *int   `json:"meeting_key"`
	SessionKey   *int   `json:"session_key"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Z            int    `json:"z"`
}

// Meeting is the single entry of /api/meetings.
type Meeting struct {
	CircuitKey          *int    `json:"circuit_key"`
	CircuitShortName    *string `json:"circuit_short_name"`
	CountryCode         *string `json:"country_code"`
	CountryKey          *int    `json:"country_key"`
	CountryName         *string `json:"country_name"`
	DateStart           *string `json:"date_start"`
	GmtOffset           *string `json:"gmt_offset"`
	Location            *string `json:"location"`
	MeetingKey          *int    `json:"meeting_key"`
	MeetingName         *string `json:"meeting_name"`
	MeetingOfficialName *string `json:"meeting_official_name"`
	Year                *int    `json:"year"`
}

// Session is the single entry of /api/sessions.
type Session struct {
	CircuitKey       *int    `json:"circuit_key"`
	CircuitShortName *string `json:"circuit_short_name"`
	CountryCode      *string `json:"country_code"`
	CountryKey       *int    `json:"country_key"`
	CountryName      *string `json:"country_name"`
	DateEnd          *string `json:"date_end"`
	DateStart        *string `json:"date_start"`
	GmtOffset        *string `json:"gmt_offset"`
	Location         *string `json:"location"`
	MeetingKey       *int    `json:"meeting_key"`
	SessionKey       *int    `json:"session_key"`
	SessionName      *string `json:"session_name"`
	SessionType      *string `json:"session_type"`
	Year             *int    `json:"year"`
}

// RaceControl is one entry of /api/race_control.
type RaceControl struct {
	Category     string  `json:"category"`
	Date         string  `json:"date"`
	DriverNumber *int    `json:"driver_number"`
	Flag         *string `json:"flag"`
	LapNumber    *int    `json:"lap_number"`
	MeetingKey   *int    `json:"meeting_key"`
	Message      string  `json:"message"`
	Scope        *string `json:"scope"`
	Sector       *int    `json:"sector"`
	SessionKey   *int    `json:"session_key"`
}

// Stint is one entry of /api/stints.
type Stint struct {
	Compound       *string `json:"compound"`
	DriverNumber   int     `json:"driver_number"`
	LapEnd         *int    `json:"lap_end"`
	LapStart       *int    `json:"lap_start"`
	MeetingKey     *int    `json:"meeting_key"`
	SessionKey     *int    `json:"session_key"`
	StintNumber    int     `json:"stint_number"`
	TyreAgeAtStart *int    `json:"tyre_age_at_start"`
}

// RadioCapture is one entry of /api/team_radio.
type RadioCapture struct {
	Date         string `json:"date"`
	DriverNumber int    `json:"driver_number"`
	MeetingKey   *int   `json:"meeting_key"`
	RecordingURL string `json:"recording_url"`
	SessionKey   *int   `json:"session_key"`
}

// Weather is the single entry of /api/weather.
type Weather struct {
	AirTemperature   float64 `json:"air_temperature"`
	Date             string  `json:"date"`
	Humidity         float64 `json:"humidity"`
	MeetingKey       *int    `json:"meeting_key"`
	Pressure         float64 `json:"pressure"`
	Rainfall         int     `json:"rainfall"`
	SessionKey       *int    `json:"session_key"`
	TrackTemperature float64 `json:"track_temperature"`
	WindDirection    int     `json:"wind_direction"`
	WindSpeed        float64 `json:"wind_speed"`
}

// LeaderboardEntry is one entry of /api/leaderboard: a join of timing,
// tyre, and identity data, sorted by race position.
type LeaderboardEntry struct {
	Position         int        `json:"position"`
	Name             string     `json:"name"`
	ShortName        string     `json:"shortName"`
	DriverNumber     int        `json:"driverNumber"`
	Team             string     `json:"team"`
	TeamColor        *string    `json:"teamColor"`
	HeadshotURL      *string    `json:"headshotUrl"`
	LastLapTime      *float64   `json:"lastLapTime"`
	BestLapTime      *float64   `json:"bestLapTime"`
	GapToLeader      *string    `json:"gapToLeader"`
	Interval         *string    `json:"interval"`
	Tyre             *string    `json:"tyre"`
	SectorTimes      []*float64 `json:"sectorTimes"`
	NumberOfPitStops int        `json:"numberOfPitStops"`
	KnockedOut       bool       `json:"knockedOut"`
	Retired          bool       `json:"retired"`
}
