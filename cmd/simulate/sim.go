package simulate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gigurra/trackswap/cmd/swap/engine"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/gigurra/trackswap/cmd/swap/simhost"
	"github.com/samber/lo"
)

// Clock drives simulated time. Wait lets time pass, calling tick along the
// way.
type Clock interface {
	Now() time.Time
	Wait(d time.Duration, tick func())
}

type manualClock struct {
	*simhost.Clock
}

func (c manualClock) Wait(d time.Duration, tick func()) {
	c.Advance(d)
	tick()
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Wait(d time.Duration, tick func()) {
	const step = 50 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}
		time.Sleep(min(step, left))
		tick()
	}
}

// Sim replays a script of host events against an engine.
type Sim struct {
	host   *simhost.Host
	eng    *engine.Engine
	store  *settings.Store
	silent *playback.SilentBackend
	clock  Clock
	start  time.Time
	out    io.Writer
}

// NewSim builds a simulation over reg. A nil backend plays silently on a
// manual clock; any other backend runs on the wall clock.
func NewSim(out io.Writer, reg *registry.Registry, store *settings.Store, backend playback.Backend, opts ...engine.Option) *Sim {
	s := &Sim{
		host:  simhost.New(),
		store: store,
		out:   out,
	}
	if backend == nil {
		s.silent = playback.NewSilentBackend()
		backend = s.silent
		s.clock = manualClock{simhost.NewClock(time.Unix(0, 0))}
	} else {
		s.clock = wallClock{}
	}
	s.start = s.clock.Now()

	opts = append([]engine.Option{
		engine.WithBackend(backend),
		engine.WithSettings(store),
		engine.WithClock(s.clock.Now),
	}, opts...)
	s.eng = engine.New(s.host, reg, opts...)
	return s
}

// Engine exposes the simulated engine, e.g. for config watchers.
func (s *Sim) Engine() *engine.Engine {
	return s.eng
}

func (s *Sim) Close() {
	s.eng.Close()
}

// Run executes script line by line. Blank lines and lines starting with # are
// skipped. The first failing line stops the run.
func (s *Sim) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.Exec(line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// Exec runs a single script command.
func (s *Sim) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	arg := strings.Join(args, " ")

	switch cmd {
	case "location":
		s.host.SetLocation(arg)
		s.printf("location %s", orDash(arg))
	case "sequence":
		switch arg {
		case "":
			return fmt.Errorf("sequence needs an id, '?' or 'end'")
		case "end":
			s.host.EndSequence()
			s.printf("sequence ended")
		case "?":
			s.host.StartSequence("")
			s.printf("sequence started (unknown id)")
		default:
			s.host.StartSequence(arg)
			s.printf("sequence %s started", arg)
		}
	case "request":
		s.request(arg)
	case "tick":
		count := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 1 {
				return fmt.Errorf("invalid tick count '%s'", arg)
			}
			count = v
		}
		for range count {
			s.eng.OnTick()
		}
	case "wait":
		d, err := time.ParseDuration(arg)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid duration '%s'", arg)
		}
		s.clock.Wait(d, s.eng.OnTick)
	case "volume":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v < 0 || v > 1 {
			return fmt.Errorf("volume must be between 0 and 1, got '%s'", arg)
		}
		s.host.SetMusicVolume(v)
		s.eng.OnTick()
	case "focus":
		switch arg {
		case "on":
			s.host.SetFocused(true)
		case "off":
			s.host.SetFocused(false)
		default:
			return fmt.Errorf("focus takes 'on' or 'off', got '%s'", arg)
		}
		s.eng.OnTick()
	case "finish":
		if s.silent == nil {
			return fmt.Errorf("finish is only available without --audio")
		}
		ended := s.silent.EndAll()
		s.printf("finished %d voice(s)", ended)
	case "reload":
		s.eng.Reload()
		s.printf("reloaded %d key(s)", countKeys(s.eng.ListAll()))
	case "percent":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid percent '%s'", arg)
		}
		if err := s.store.Update(func(c *settings.Settings) { c.NativeInsteadPercent = v }); err != nil {
			return err
		}
		s.printf("native instead percent %d", s.store.Current().NativeInsteadPercent)
	case "status":
		s.status()
	default:
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	return nil
}

func (s *Sim) request(track string) {
	allow := s.eng.OnTrackChange(engine.TrackChange{TrackID: track, Interruptible: true})
	if allow {
		s.host.PlayNative(track)
	}
	s.printf("request %s: %s", orDash(track), describe(s.eng.LastDecision()))
}

func describe(d engine.Decision) string {
	var b strings.Builder
	b.WriteString(string(d.Outcome))
	if d.Repeat > 1 {
		fmt.Fprintf(&b, " (repeat %d)", d.Repeat)
	}
	switch d.Outcome {
	case engine.OutcomeReplacement, engine.OutcomeDuplicate:
		fmt.Fprintf(&b, " %s -> %s [%s]", d.MatchedKey, d.Selection.Asset.RelativePath, d.Selection.Asset.OriginID)
		if d.Selection.Started {
			b.WriteString(" started")
		}
	case engine.OutcomeNativeRoll, engine.OutcomeFailed:
		fmt.Fprintf(&b, " %s", d.MatchedKey)
	}
	if d.AllowNative {
		b.WriteString(", native plays")
	}
	return b.String()
}

func (s *Sim) status() {
	st := s.eng.Status()
	native, playing := s.host.NativeTrack()
	if !playing {
		native = "-"
	}
	if !st.Active {
		s.printf("status: no replacement, native %s, muted %t", native, st.Muted)
		return
	}
	s.printf("status: %s %s (%s) from %s, instances %d, native %s, muted %t",
		st.Selection.Asset.RelativePath, st.State, st.Selection.MatchedKey, st.Source, st.Instances, native, st.Muted)
}

func (s *Sim) printf(format string, args ...any) {
	elapsed := s.clock.Now().Sub(s.start).Seconds()
	fmt.Fprintf(s.out, "[+%.3fs] %s\n", elapsed, fmt.Sprintf(format, args...))
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func countKeys(entries []registry.Entry) int {
	return len(lo.UniqBy(entries, func(e registry.Entry) string { return strings.ToLower(e.Key) }))
}
