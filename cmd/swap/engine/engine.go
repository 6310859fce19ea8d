// Package engine decides, for every music change the host requests, whether a
// replacement plays or the host's own track is allowed through.
package engine

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/keys"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/scene"
	"github.com/gigurra/trackswap/cmd/swap/settings"
)

// Host is everything the engine needs from the application it runs in.
type Host interface {
	scene.Source
	playback.NativeAudio
}

// TrackChange is one music change requested by the host.
type TrackChange struct {
	TrackID       string
	Interruptible bool
	// Channel is the host's own music channel name, informational only.
	Channel string
}

// Outcome names how a request was decided.
type Outcome string

const (
	OutcomeBlank       Outcome = "blank"
	OutcomeSilence     Outcome = "silence"
	OutcomeWeather     Outcome = "weather-blocked"
	OutcomeNoMatch     Outcome = "no-match"
	OutcomeNativeRoll  Outcome = "native-roll"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeReplacement Outcome = "replacement"
	OutcomeFailed      Outcome = "failed"
)

// Decision records the most recent request and what happened to it.
type Decision struct {
	TrackID     string
	Context     scene.Context
	Repeat      int
	Candidates  []string
	MatchedKey  string
	Outcome     Outcome
	AllowNative bool
	Selection   playback.Selection
}

// Status is a snapshot of the playback side.
type Status struct {
	Active    bool
	Selection playback.Selection
	State     playback.State
	Source    string
	Instances int
	Muted     bool
}

// Engine is driven from the host's update thread. Only MarkConfigChanged may
// be called from other goroutines.
type Engine struct {
	host Host
	reg  *registry.Registry
	mgr  *playback.Manager
	opts Options
	log  *slog.Logger

	seq         *sequenceState
	wasInSeq    bool
	lastSilence time.Time
	lastWeather time.Time
	last        Decision
	configDirty atomic.Bool
	closed      bool
}

// New creates an engine for host over reg. Without options it plays nothing
// audible (silent backend) and enables every replacement.
func New(host Host, reg *registry.Registry, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Backend == nil {
		o.Backend = playback.NewSilentBackend()
	}
	if o.Settings == nil {
		o.Settings = settings.NewMemoryStore(nil)
	}
	if o.Playback.Rand == nil {
		o.Playback.Rand = o.Rand
	}
	if o.Playback.Now == nil {
		o.Playback.Now = o.Now
	}
	if o.Playback.Logger == nil {
		o.Playback.Logger = o.Logger
	}
	if reg == nil {
		reg = registry.New(nil, o.Logger)
	}

	return &Engine{
		host: host,
		reg:  reg,
		mgr:  playback.NewManager(o.Backend, host, o.Playback),
		opts: o,
		log:  o.Logger,
		seq:  newSequenceState(""),
	}
}

// OnTrackChange handles a music change request and reports whether the host
// should go ahead with its own track.
func (e *Engine) OnTrackChange(req TrackChange) (allowNative bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("track change handling failed, allowing native music", "track", req.TrackID, "panic", r)
			e.safeStopAll()
			allowNative = true
		}
	}()
	if e.closed {
		return true
	}

	e.applyPendingReload()
	cfg := e.settings()
	ctx := scene.Snapshot(e.host)
	e.observe(ctx)
	now := e.opts.Now()

	id := strings.TrimSpace(req.TrackID)
	d := Decision{TrackID: id, Context: ctx}
	defer func() {
		d.AllowNative = allowNative
		e.last = d
	}()

	e.log.Debug("track requested", "track", id, "interruptible", req.Interruptible, "channel", req.Channel, "context", ctx.String())

	if id == "" {
		d.Outcome = OutcomeBlank
		e.mgr.StopAll(false)
		return true
	}

	if strings.EqualFold(id, e.opts.SilenceTrackID) {
		d.Outcome = OutcomeSilence
		if e.lastSilence.IsZero() || now.Sub(e.lastSilence) >= e.opts.SilenceWindow {
			e.log.Debug("silence requested, stopping replacements")
			e.mgr.StopAll(false)
		}
		e.lastSilence = now
		return true
	}

	if ctx.SequenceActive && e.seq.customPlayed && strings.EqualFold(id, e.opts.WeatherTrackID) {
		d.Outcome = OutcomeWeather
		if e.lastWeather.IsZero() || now.Sub(e.lastWeather) >= e.opts.WeatherLogWindow {
			e.log.Info("keeping sequence music, ignoring weather cue", "track", id, "sequence", ctx.SequenceID)
			e.lastWeather = now
		}
		return false
	}

	repeat, same := e.seq.occurrence(id, now, e.opts.RepeatWindow)
	d.Repeat = repeat
	d.Candidates = keys.Build(id, ctx, repeat)

	if cfg.ShowSuggestionsAlways {
		e.log.Info("candidate keys", "track", id, "repeat", repeat, "suggestions", "\n"+keys.Suggestions(d.Candidates))
	}

	matched, assets, ok := e.reg.Resolve(d.Candidates, cfg)
	if !ok {
		d.Outcome = OutcomeNoMatch
		e.log.Debug("no replacement configured, allowing native music", "track", id, "repeat", repeat)
		e.mgr.StopAll(false)
		return true
	}
	d.MatchedKey = matched

	if e.rollNative(id, repeat, same, cfg.NativeInsteadPercent) {
		d.Outcome = OutcomeNativeRoll
		e.mgr.StopAll(false)
		e.seq.customPlayed = false
		return true
	}

	if sel, ok := e.mgr.Recent(id, cfg); ok {
		d.Outcome = OutcomeDuplicate
		d.Selection = sel
		e.stopNative()
		return false
	}

	sel, err := e.mgr.SelectAndPlay(playback.Request{
		MatchedKey: matched,
		Assets:     assets,
		TrackID:    id,
		Scoped:     ctx.SequenceActive,
	}, cfg)
	if err != nil {
		d.Outcome = OutcomeFailed
		if errors.Is(err, playback.ErrNoReplacement) {
			e.log.Debug("no enabled replacement, allowing native music", "key", matched)
		} else {
			e.log.Warn("failed to play replacement, allowing native music", "key", matched, "error", err)
		}
		e.mgr.StopAll(false)
		return true
	}

	d.Outcome = OutcomeReplacement
	d.Selection = sel
	e.stopNative()
	if ctx.SequenceActive {
		e.seq.customPlayed = true
	}
	if sel.Started {
		e.log.Info("replacement selected", "track", id, "key", matched, "file", sel.Asset.RelativePath, "source", e.mgr.SourceLabel())
	}
	return false
}

// rollNative decides once per occurrence whether native music plays instead
// of a matched replacement.
func (e *Engine) rollNative(trackID string, repeat int, same bool, percent int) bool {
	if percent <= 0 {
		return false
	}
	k := occurrenceKey(trackID, repeat)
	if forced, ok := e.seq.nativeRolls[k]; ok && same {
		return forced
	}
	roll := e.opts.Rand.IntN(100) + 1
	forced := roll <= percent
	e.seq.nativeRolls[k] = forced
	if forced {
		e.log.Info("playing native music instead of replacement", "track", trackID, "repeat", repeat, "roll", roll, "percent", percent)
	}
	return forced
}

// OnTick runs once per host update.
func (e *Engine) OnTick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tick handling failed", "panic", r)
		}
	}()
	if e.closed {
		return
	}

	e.applyPendingReload()
	cfg := e.settings()
	e.observe(scene.Snapshot(e.host))
	e.mgr.UpdateVolumes(cfg)
}

// observe tracks sequence transitions. Leaving a sequence stops and disposes
// the replacements it started. Any change of sequence resets its counters.
func (e *Engine) observe(ctx scene.Context) {
	if e.wasInSeq && !ctx.SequenceActive {
		e.log.Debug("sequence ended, stopping its replacements")
		e.mgr.StopScoped(true)
	}
	e.wasInSeq = ctx.SequenceActive

	if key := ctx.SequenceKey(); key != e.seq.key {
		e.log.Debug("sequence changed", "from", e.seq.key, "to", key)
		e.seq = newSequenceState(key)
	}
}

// Reload re-reads every replacement source.
func (e *Engine) Reload() {
	stats := e.reg.Reload()
	e.log.Info("reloaded replacements", "keys", stats.Keys, "files", stats.Files, "addOns", stats.AddOns, "warnings", stats.Warnings)
}

// MarkConfigChanged schedules a reload on the next host call. Safe to call
// from any goroutine.
func (e *Engine) MarkConfigChanged() {
	e.configDirty.Store(true)
}

func (e *Engine) applyPendingReload() {
	if e.configDirty.CompareAndSwap(true, false) {
		e.Reload()
	}
}

// ListAll returns every configured (key, asset) pair in display order.
func (e *Engine) ListAll() []registry.Entry {
	return e.reg.ListAll()
}

// LastDecision returns the most recent track change decision.
func (e *Engine) LastDecision() Decision {
	return e.last
}

func (e *Engine) Status() Status {
	sel, ok := e.mgr.Active()
	return Status{
		Active:    ok,
		Selection: sel,
		State:     e.mgr.ActiveState(),
		Source:    e.mgr.SourceLabel(),
		Instances: e.mgr.Instances(),
		Muted:     e.mgr.Muted(),
	}
}

// Close stops and releases all replacements and restores native volume.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.mgr.StopAll(true)
	e.closed = true
}

func (e *Engine) settings() *settings.Settings {
	s := e.opts.Settings.Current()
	if s == nil {
		s = settings.DefaultSettings()
	}
	common.SetDebug(e.opts.Level, s.EnableDebugLogging)
	return s
}

func (e *Engine) stopNative() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("failed to stop native music", "panic", r)
		}
	}()
	e.host.StopNative()
}

func (e *Engine) safeStopAll() {
	defer func() { _ = recover() }()
	e.mgr.StopAll(false)
}
