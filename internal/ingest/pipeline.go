// Package ingest classifies upstream frames and drives the store, the
// derivation step, and the broadcast fan-out. It is the single writer of
// session state: every mutation and the broadcast that announces it happen
// in frame-arrival order.
package ingest

import (
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/clock"
	"github.com/pitwall/lt-relay/internal/codec"
	"github.com/pitwall/lt-relay/internal/derive"
	"github.com/pitwall/lt-relay/internal/metrics"
	"github.com/pitwall/lt-relay/internal/state"
)

// Broadcaster delivers frames to downstream subscribers. *ws.Hub
// implements it.
type Broadcaster interface {
	Broadcast(eventType string, data any)
	BroadcastJSON(v any)
}

// Mirror republishes delta envelopes to a secondary transport (MQTT).
type Mirror interface {
	Publish(eventType string, data any)
}

// Pipeline processes incoming frames from the live feed or a replay.
type Pipeline struct {
	store  *state.Store
	bus    Broadcaster
	mirror Mirror
	laps   *derive.LapTracker
	log    zerolog.Logger

	mode      string
	connected func() bool

	frameCount atomic.Int64
	feedCounts *xsync.MapOf[string, *xsync.Counter]

	stop chan struct{}
}

type Options struct {
	Store  *state.Store
	Bus    Broadcaster
	Mirror Mirror // optional
	Mode   string // LIVE or REPLAY, reported through the health endpoint
	Log    zerolog.Logger
}

func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		store:      opts.Store,
		bus:        opts.Bus,
		mirror:     opts.Mirror,
		laps:       derive.NewLapTracker(),
		log:        opts.Log.With().Str("component", "ingest").Logger(),
		mode:       opts.Mode,
		feedCounts: xsync.NewMapOf[string, *xsync.Counter](),
		stop:       make(chan struct{}),
	}
}

// SetConnected wires the upstream connection probe reported through the
// health endpoint. Live mode passes the transport's; replay passes none.
func (p *Pipeline) SetConnected(fn func() bool) { p.connected = fn }

// Start begins periodic stats logging.
func (p *Pipeline) Start() {
	go p.statsLoop()
	p.log.Info().Str("mode", p.mode).Msg("ingest pipeline started")
}

// Stop ends the stats loop.
func (p *Pipeline) Stop() {
	close(p.stop)
	p.log.Info().Int64("total_frames", p.frameCount.Load()).Msg("ingest pipeline stopped")
}

// Mode returns the configured run mode.
func (p *Pipeline) Mode() string { return p.mode }

// Connected reports whether the upstream transport is up.
func (p *Pipeline) Connected() bool {
	return p.connected != nil && p.connected()
}

// FramesProcessed returns the number of frames handled so far.
func (p *Pipeline) FramesProcessed() int64 { return p.frameCount.Load() }

// DriversInPit returns the number of drivers currently tracked in the pit
// lane.
func (p *Pipeline) DriversInPit() int { return len(p.store.PitEntries()) }

// HandleText processes one upstream text frame. A frame is either a
// snapshot ({"R": {...}}), a batch of incremental updates ({"M": [...]}),
// or protocol noise (keep-alives, subscribe acks) which is ignored. Any
// failure is confined to this frame.
func (p *Pipeline) HandleText(frame string, at time.Time) {
	defer p.isolate("text")
	p.frameCount.Add(1)

	var msg map[string]any
	if err := json.Unmarshal([]byte(frame), &msg); err != nil {
		p.log.Warn().Err(err).Str("sample", truncate(frame, 120)).Msg("unparseable frame, skipped")
		return
	}

	if r, ok := msg["R"].(map[string]any); ok {
		p.handleSnapshot(r, at)
		return
	}
	if updates, ok := msg["M"].([]any); ok {
		p.handleUpdates(updates, at)
	}
}

// HandleBinary processes one upstream binary frame. Binary frames are not
// self-describing; by upstream convention they carry compressed CarData.
func (p *Pipeline) HandleBinary(data []byte, at time.Time) {
	defer p.isolate("binary")
	p.frameCount.Add(1)

	payload, err := codec.Decode(data)
	if err != nil {
		metrics.DecodeFailuresTotal.Inc()
		p.log.Warn().Err(err).Int("size", len(data)).Msg("binary frame not decodable, skipped")
		return
	}
	p.apply("CarData", payload)
	p.broadcast("CarData", payload)
}

// handleSnapshot applies every feed of an R frame, then pushes the full
// state tree to all subscribers.
func (p *Pipeline) handleSnapshot(r map[string]any, at time.Time) {
	feeds := make([]string, 0, len(r))
	for feed := range r {
		feeds = append(feeds, feed)
	}
	sort.Strings(feeds)

	for _, feed := range feeds {
		name, payload, ok := p.decodeFeed(feed, r[feed])
		if !ok {
			continue
		}
		switch name {
		case "SessionInfo":
			p.applySessionInfo(payload)
		case "LapCount":
			// upstream lap counts are known bad; the derived counter rules
		default:
			p.apply(name, payload)
		}
	}

	p.log.Info().Int("feeds", len(feeds)).Time("at", at).Msg("snapshot applied")
	p.bus.BroadcastJSON(p.store.Snapshot())
}

// handleUpdates dispatches each incremental update of an M frame. Update
// shape: {"M": _, "A": [feedName, payload, timestamp]}; the timestamp is
// optional and falls back to frame arrival.
func (p *Pipeline) handleUpdates(updates []any, at time.Time) {
	for _, u := range updates {
		args := state.List(u, "A")
		if len(args) < 2 {
			continue
		}
		feed, ok := args[0].(string)
		if !ok {
			continue
		}
		name, payload, ok := p.decodeFeed(feed, args[1])
		if !ok {
			continue
		}

		ts := at
		if len(args) >= 3 {
			if s, ok := args[2].(string); ok {
				if parsed, err := clock.ParseISO(s); err == nil {
					ts = parsed
				}
			}
		}

		switch name {
		case "TimingData":
			p.handleTimingData(payload, ts)
		case "SessionInfo":
			p.applySessionInfo(payload)
			p.broadcast(name, payload)
		case "LapCount":
			p.log.Debug().Msg("upstream LapCount discarded")
		case "TeamRadio":
			p.apply(name, payload)
			p.broadcast(name, payload)
			for _, capture := range teamRadioCaptures(payload) {
				p.broadcast("NewTeamRadio", capture)
			}
		case "RaceControlMessages", "SessionStatus", "WeatherData", "TimingAppData":
			p.apply(name, payload)
			p.broadcast(name, payload)
		default:
			p.apply(name, payload)
		}
	}
}

// handleTimingData is the derivation hot path: apply the delta, correct
// the lap counter, run the lap and pit detectors, then announce the raw
// delta.
func (p *Pipeline) handleTimingData(payload any, at time.Time) {
	prior := p.store.TimingLines()
	p.apply("TimingData", payload)
	lines := p.store.TimingLines()

	lc := p.store.SetCurrentLap(derive.CurrentLap(lines))
	p.broadcast("LapCount", lc)

	sessionKey, meetingKey := p.store.SessionKeys()

	for _, rec := range derive.Laps(prior, payload, at, sessionKey, meetingKey) {
		if !p.laps.Fresh(rec.DriverNumber, rec.LapNumber) {
			continue
		}
		p.store.AppendLap(rec)
		metrics.LapsRecordedTotal.Inc()
		p.log.Debug().Int("driver", rec.DriverNumber).Int("lap", rec.LapNumber).
			Float64("duration", rec.LapDuration).Msg("lap completed")
		p.broadcast("NewLap", rec)
	}

	lapsBy := func(driver string) int { return state.Int(lines[driver], "NumberOfLaps") }
	for _, ev := range derive.Pits(payload, p.store.PitEntries(), lapsBy, at, sessionKey, meetingKey) {
		if ev.Enter != nil {
			p.store.EnterPit(ev.Driver, *ev.Enter)
			continue
		}
		if _, ok := p.store.ExitPit(ev.Driver); !ok {
			continue
		}
		p.store.AppendPit(*ev.Record)
		metrics.PitStopsRecordedTotal.Inc()
		p.log.Debug().Int("driver", ev.Record.DriverNumber).
			Float64("duration", ev.Record.PitDuration).Msg("pit stop completed")
		p.broadcast("NewPitStop", *ev.Record)
	}

	p.broadcast("TimingData", payload)
}

// decodeFeed inflates a ".z" payload and strips the suffix. Reports false
// when the payload is compressed but not decodable.
func (p *Pipeline) decodeFeed(feed string, payload any) (string, any, bool) {
	if !codec.IsCompressed(feed) {
		return feed, payload, true
	}
	s, ok := payload.(string)
	if !ok {
		return "", nil, false
	}
	decoded, err := codec.DecodeString(s)
	if err != nil {
		metrics.DecodeFailuresTotal.Inc()
		p.log.Warn().Err(err).Str("feed", feed).Msg("compressed payload not decodable, skipped")
		return "", nil, false
	}
	return codec.TrimZ(feed), decoded, true
}

// applySessionInfo stores the session metadata and refreshes the race
// distance from the circuit table.
func (p *Pipeline) applySessionInfo(payload any) {
	p.apply("SessionInfo", payload)
	short := state.Str(p.store.Get("SessionInfo"), "Meeting", "Circuit", "ShortName")
	p.store.SetTotalLaps(derive.CircuitLaps(short))
}

func (p *Pipeline) apply(feed string, payload any) {
	p.store.Apply(feed, payload)
	metrics.FeedUpdatesTotal.WithLabelValues(feed).Inc()
	c, _ := p.feedCounts.LoadOrCompute(feed, func() *xsync.Counter { return xsync.NewCounter() })
	c.Inc()
}

func (p *Pipeline) broadcast(eventType string, data any) {
	p.bus.Broadcast(eventType, data)
	if p.mirror != nil {
		p.mirror.Publish(eventType, data)
	}
}

// teamRadioCaptures flattens a TeamRadio payload into its individual
// captures, tolerating the same carrier shapes the store accepts.
func teamRadioCaptures(payload any) []any {
	switch x := payload.(type) {
	case []any:
		return x
	case map[string]any:
		inner, ok := x["Captures"]
		if !ok {
			return []any{x}
		}
		if l, ok := inner.([]any); ok {
			return l
		}
		return state.Items(inner)
	}
	return nil
}

// isolate confines a panic while handling one frame to that frame. Walking
// hostile dynamic trees should never take the process down.
func (p *Pipeline) isolate(kind string) {
	if r := recover(); r != nil {
		p.log.Error().Interface("panic", r).Str("kind", kind).Msg("frame handling panicked, frame dropped")
	}
}

// statsLoop logs frame counts every 60 seconds.
func (p *Pipeline) statsLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	var lastTotal int64
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			total := p.frameCount.Load()
			delta := total - lastTotal
			lastTotal = total

			evt := p.log.Info().
				Int64("total", total).
				Int64("last_60s", delta)
			p.feedCounts.Range(func(feed string, c *xsync.Counter) bool {
				evt = evt.Int64(feed, c.Value())
				return true
			})
			evt.Msg("stats")
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
