// Package replay reproduces a captured session from a line-delimited
// capture file, pacing frames by their original arrival gaps, and records
// live sessions into the same format.
package replay

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/clock"
)

// entry is one captured frame. Binary data is base64-encoded.
type entry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Data      string `json:"data"`
}

// scanBufferSize must hold the largest single frame; snapshot frames run
// to several megabytes.
const scanBufferSize = 16 * 1024 * 1024

// TextHandler receives each replayed text frame with its captured arrival
// time.
type TextHandler func(frame string, at time.Time)

// BinaryHandler receives each replayed binary frame with its captured
// arrival time.
type BinaryHandler func(data []byte, at time.Time)

// Player streams a capture file into the pipeline in simulated real time.
type Player struct {
	path     string
	speed    float64
	onText   TextHandler
	onBinary BinaryHandler
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

type Options struct {
	Path     string
	Speed    float64 // pacing divisor; 1.0 replays at original speed
	OnText   TextHandler
	OnBinary BinaryHandler
	Log      zerolog.Logger
}

func NewPlayer(opts Options) *Player {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return &Player{
		path:     opts.Path,
		speed:    speed,
		onText:   opts.OnText,
		onBinary: opts.OnBinary,
		log:      opts.Log.With().Str("component", "replay").Logger(),
		sleep:    sleepCtx,
	}
}

// Run replays the capture file until EOF or ctx cancel. A missing file is
// an error; a malformed line is logged and skipped. Frames are handed to
// the handlers with the captured timestamp as arrival time, so derived
// records come out identical at any speed.
func (p *Player) Run(ctx context.Context) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	p.log.Info().Str("path", p.path).Float64("speed", p.speed).Msg("replay starting")

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), scanBufferSize)

	var (
		prev     time.Time
		played   int64
		skipped  int64
		lineNo   int
	)
	for sc.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var e entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			p.log.Warn().Err(err).Int("line", lineNo).Msg("unparseable capture line, skipped")
			skipped++
			continue
		}
		at, err := clock.ParseISO(e.Timestamp)
		if err != nil {
			p.log.Warn().Err(err).Int("line", lineNo).Msg("capture line has bad timestamp, skipped")
			skipped++
			continue
		}

		if !prev.IsZero() {
			if gap := at.Sub(prev); gap > 0 {
				if err := p.sleep(ctx, time.Duration(float64(gap)/p.speed)); err != nil {
					return err
				}
			}
		}
		prev = at

		switch e.Type {
		case "text":
			if p.onText != nil {
				p.onText(e.Data, at)
			}
		case "binary":
			raw, err := base64.StdEncoding.DecodeString(e.Data)
			if err != nil {
				p.log.Warn().Err(err).Int("line", lineNo).Msg("capture line has bad base64, skipped")
				skipped++
				continue
			}
			if p.onBinary != nil {
				p.onBinary(raw, at)
			}
		default:
			p.log.Warn().Str("type", e.Type).Int("line", lineNo).Msg("unknown capture entry type, skipped")
			skipped++
			continue
		}
		played++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read capture: %w", err)
	}

	p.log.Info().Int64("frames", played).Int64("skipped", skipped).Msg("replay finished")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
