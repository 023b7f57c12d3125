package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/state"
)

type staticSnapshot struct{ body string }

func (s staticSnapshot) SnapshotJSON() ([]byte, error) { return []byte(s.body), nil }

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	msg := readFrame(t, conn)
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	return env
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count = %d, want %d", h.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// The first frame is the raw state tree; envelopes only follow it.
func TestSnapshotArrivesFirst(t *testing.T) {
	h := NewHub(staticSnapshot{body: `{"SessionInfo":{"Name":"Race"}}`}, zerolog.Nop())
	defer h.Close()
	conn := dialHub(t, h)
	waitForCount(t, h, 1)

	// the snapshot was queued at registration, before this broadcast
	h.Broadcast("TimingData", map[string]any{"Lines": map[string]any{}})

	var first map[string]any
	if err := json.Unmarshal(readFrame(t, conn), &first); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if _, ok := first["SessionInfo"]; !ok {
		t.Fatalf("first frame = %v, want state tree", first)
	}
	second := readEnvelope(t, conn)
	if second.Type != "TimingData" {
		t.Errorf("second frame type = %q, want TimingData", second.Type)
	}
}

// A new subscriber's snapshot carries everything applied so far, with
// append-policy slots in arrival order.
func TestSnapshotReflectsStore(t *testing.T) {
	st := state.New(zerolog.Nop())
	st.Apply("DriverList", map[string]any{
		"1":  map[string]any{"Tla": "VER"},
		"16": map[string]any{"Tla": "LEC"},
	})
	for i := 0; i < 5; i++ {
		st.Apply("RaceControlMessages", map[string]any{
			"Utc":      time.Date(2023, 5, 28, 13, 0, i, 0, time.UTC).Format(time.RFC3339),
			"Category": "Flag",
			"Message":  string(rune('A' + i)),
		})
	}

	h := NewHub(st, zerolog.Nop())
	defer h.Close()
	conn := dialHub(t, h)

	var snap map[string]any
	if err := json.Unmarshal(readFrame(t, conn), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	drivers, _ := snap["DriverList"].(map[string]any)
	if len(drivers) != 2 {
		t.Errorf("DriverList = %v, want 2 drivers", snap["DriverList"])
	}
	msgs, _ := snap["RaceControlMessages"].([]any)
	if len(msgs) != 5 {
		t.Fatalf("RaceControlMessages len = %d, want 5", len(msgs))
	}
	for i, m := range msgs {
		if got := m.(map[string]any)["Message"]; got != string(rune('A'+i)) {
			t.Errorf("message[%d] = %v, want %q (arrival order)", i, got, string(rune('A'+i)))
		}
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub(staticSnapshot{body: `{}`}, zerolog.Nop())
	defer h.Close()
	a := dialHub(t, h)
	b := dialHub(t, h)
	readFrame(t, a)
	readFrame(t, b)

	waitForCount(t, h, 2)
	h.Broadcast("LapCount", map[string]any{"CurrentLap": float64(12), "TotalLaps": float64(78)})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		if env.Type != "LapCount" {
			t.Fatalf("type = %q, want LapCount", env.Type)
		}
		data, ok := env.Data.(map[string]any)
		if !ok || data["CurrentLap"] != float64(12) {
			t.Errorf("data = %#v", env.Data)
		}
	}
}

func TestCountTracksRegistrations(t *testing.T) {
	h := NewHub(staticSnapshot{body: `{}`}, zerolog.Nop())
	defer h.Close()
	if h.Count() != 0 {
		t.Fatalf("initial Count = %d, want 0", h.Count())
	}

	conn := dialHub(t, h)
	readFrame(t, conn)
	waitForCount(t, h, 1)

	conn.Close()
	waitForCount(t, h, 0)
}
