package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/config"
)

func TestServerRoutes(t *testing.T) {
	srv := NewServer(ServerOptions{
		Config: &config.Config{HTTPAddr: ":0"},
		Store:  seedStore(t),
		Live:   &fakeLive{mode: "REPLAY", frames: 10},
		Stream: http.NotFoundHandler(),
		Subs:   &fakeSubs{n: 2},
		Log:    zerolog.Nop(),
	})

	paths := []string{
		"/api/v1/health",
		"/metrics",
		"/api/drivers",
		"/api/laps",
		"/api/pit",
		"/api/intervals",
		"/api/position",
		"/api/location",
		"/api/car_data",
		"/api/meetings",
		"/api/sessions",
		"/api/stints",
		"/api/team_radio",
		"/api/weather",
		"/api/race_control",
		"/api/leaderboard",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestServerCORSPreflight(t *testing.T) {
	srv := NewServer(ServerOptions{
		Config: &config.Config{HTTPAddr: ":0"},
		Store:  seedStore(t),
		Live:   &fakeLive{mode: "REPLAY"},
		Stream: http.NotFoundHandler(),
		Subs:   &fakeSubs{},
		Log:    zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/drivers", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestServerResponsesAreJSON(t *testing.T) {
	srv := NewServer(ServerOptions{
		Config: &config.Config{HTTPAddr: ":0"},
		Store:  seedStore(t),
		Live:   &fakeLive{mode: "REPLAY"},
		Stream: http.NotFoundHandler(),
		Subs:   &fakeSubs{},
		Log:    zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body []LeaderboardEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) == 0 {
		t.Error("leaderboard empty")
	}
}
