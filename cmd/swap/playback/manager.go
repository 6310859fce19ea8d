// Package playback owns replacement audio handles: which one is active, when
// it starts, stops and restarts, and keeping the host's native music quiet
// while a replacement plays.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/gigurra/trackswap/cmd/swap/decode"
	"github.com/gigurra/trackswap/cmd/swap/keys"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrNoReplacement = errors.New("no enabled replacement")
	ErrAssetMissing  = errors.New("replacement file not found")
)

const (
	DefaultRestartDebounce      = 150 * time.Millisecond
	DefaultDuplicateStartWindow = 450 * time.Millisecond
)

// Rand picks uniformly in [0, n).
type Rand interface {
	IntN(n int) int
}

type Options struct {
	// RestartDebounce is the minimum time between restarts of an active
	// voice that stopped on its own.
	RestartDebounce time.Duration
	// DuplicateStartWindow is how long a freshly started replacement is
	// reused for repeated requests of the same track.
	DuplicateStartWindow time.Duration

	Rand   Rand
	Now    func() time.Time
	Decode func(path string) (*decode.PCM, error)
	Logger *slog.Logger
}

// Request asks for a replacement to be selected among the assets of a key.
type Request struct {
	MatchedKey string
	Assets     []registry.Asset
	TrackID    string
	// Scoped marks the instance as belonging to the current scripted
	// sequence, so StopScoped disposes it.
	Scoped bool
}

// Selection describes the replacement that is (now) playing.
type Selection struct {
	InstanceKey string
	MatchedKey  string
	Asset       registry.Asset
	HandleID    string
	// Started is true when playback was (re)started by the call.
	Started bool
}

type instance struct {
	id    string
	key   string
	asset registry.Asset
	voice Voice
}

type activeSub struct {
	instanceKey string
	group       string
	asset       registry.Asset
}

type lastStart struct {
	trackID string
	at      time.Time
}

// Manager is not safe for concurrent use. All calls happen on the host's
// update thread.
type Manager struct {
	backend Backend
	native  NativeAudio
	opts    Options
	log     *slog.Logger

	instances   map[string]*instance // lowercased instance key, aliases share a pointer
	scoped      map[string]struct{}
	active      *activeSub
	savedVolume *float64
	last        lastStart
	lastRestart time.Time
}

func NewManager(backend Backend, native NativeAudio, opts Options) *Manager {
	if opts.RestartDebounce <= 0 {
		opts.RestartDebounce = DefaultRestartDebounce
	}
	if opts.DuplicateStartWindow <= 0 {
		opts.DuplicateStartWindow = DefaultDuplicateStartWindow
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Decode == nil {
		opts.Decode = decode.File
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend:   backend,
		native:    native,
		opts:      opts,
		log:       log,
		instances: map[string]*instance{},
		scoped:    map[string]struct{}{},
	}
}

// SelectAndPlay picks and plays a replacement for req. An active replacement
// whose file is still eligible keeps playing (file-sticky), as does one whose
// key group is requested again while it stays enabled (key-sticky). Otherwise
// an enabled asset is drawn at random. On error nothing is left muted.
func (m *Manager) SelectAndPlay(req Request, en registry.Enablement) (Selection, error) {
	pool := registry.Enabled(req.MatchedKey, req.Assets, en)
	if len(pool) == 0 {
		return Selection{}, fmt.Errorf("%w for '%s'", ErrNoReplacement, req.MatchedKey)
	}

	if a := m.active; a != nil {
		if inst := m.instances[lower(a.instanceKey)]; inst != nil {
			if lo.ContainsBy(pool, a.asset.Same) {
				newKey := registry.InstanceKey(req.MatchedKey, a.asset)
				if !strings.EqualFold(newKey, a.instanceKey) {
					m.instances[lower(newKey)] = inst
					a.instanceKey = newKey
					m.log.Debug("re-keyed active replacement", "key", newKey, "handle", inst.id)
				}
				a.group = req.MatchedKey
				return m.continueActive(inst, req)
			}
			if keys.Equal(a.group, req.MatchedKey) && registry.IsEnabled(req.MatchedKey, a.asset, en) {
				return m.continueActive(inst, req)
			}
		}
	}

	picked := pool[0]
	if len(pool) > 1 {
		picked = pool[m.opts.Rand.IntN(len(pool))]
	}
	instanceKey := registry.InstanceKey(req.MatchedKey, picked)

	m.stopVoices()
	m.active = nil

	inst, err := m.load(instanceKey, picked)
	if err != nil {
		m.StopAll(false)
		return Selection{}, err
	}

	m.silenceNative()
	inst.voice.SetVolume(m.musicVolume())
	inst.voice.Stop()
	if err := inst.voice.Play(); err != nil {
		m.StopAll(false)
		return Selection{}, fmt.Errorf("failed to play %s: %w", picked.FullPath(), err)
	}

	m.active = &activeSub{instanceKey: instanceKey, group: req.MatchedKey, asset: picked}
	if req.Scoped {
		m.scoped[lower(instanceKey)] = struct{}{}
	}
	m.last = lastStart{trackID: req.TrackID, at: m.opts.Now()}

	m.log.Info("playing replacement",
		"key", req.MatchedKey,
		"file", picked.RelativePath,
		"origin", picked.Label(),
		"handle", inst.id,
		"choices", len(pool))

	return Selection{
		InstanceKey: instanceKey,
		MatchedKey:  req.MatchedKey,
		Asset:       picked,
		HandleID:    inst.id,
		Started:     true,
	}, nil
}

func (m *Manager) continueActive(inst *instance, req Request) (Selection, error) {
	a := m.active
	m.silenceNative()
	inst.voice.SetVolume(m.musicVolume())

	started := false
	if inst.voice.State() == StateStopped {
		inst.voice.Stop()
		if err := inst.voice.Play(); err != nil {
			m.StopAll(false)
			return Selection{}, fmt.Errorf("failed to restart %s: %w", a.asset.FullPath(), err)
		}
		started = true
	}
	if req.Scoped {
		m.scoped[lower(a.instanceKey)] = struct{}{}
	}
	m.last = lastStart{trackID: req.TrackID, at: m.opts.Now()}

	m.log.Debug("keeping active replacement", "key", req.MatchedKey, "file", a.asset.RelativePath, "restarted", started)
	return Selection{
		InstanceKey: a.instanceKey,
		MatchedKey:  a.group,
		Asset:       a.asset,
		HandleID:    inst.id,
		Started:     started,
	}, nil
}

// Recent returns the active replacement if trackID started it within the
// duplicate-start window and it is still playing and enabled.
func (m *Manager) Recent(trackID string, en registry.Enablement) (Selection, bool) {
	a := m.active
	if a == nil || m.last.trackID == "" || !strings.EqualFold(m.last.trackID, trackID) {
		return Selection{}, false
	}
	if m.opts.Now().Sub(m.last.at) >= m.opts.DuplicateStartWindow {
		return Selection{}, false
	}
	inst := m.instances[lower(a.instanceKey)]
	if inst == nil || inst.voice.State() != StatePlaying || !registry.IsEnabled(a.group, a.asset, en) {
		return Selection{}, false
	}
	m.silenceNative()
	inst.voice.SetVolume(m.musicVolume())
	return Selection{
		InstanceKey: a.instanceKey,
		MatchedKey:  a.group,
		Asset:       a.asset,
		HandleID:    inst.id,
	}, true
}

// UpdateVolumes runs once per host tick. It mirrors the music volume onto
// playing voices, keeps the native player muted and stopped while a
// replacement is active, and stops or restarts the active replacement as
// needed.
func (m *Manager) UpdateVolumes(en registry.Enablement) {
	vol := m.musicVolume()
	for _, inst := range m.distinct() {
		if inst.voice.State() == StatePlaying {
			inst.voice.SetVolume(vol)
		}
	}

	a := m.active
	if a == nil {
		return
	}
	inst := m.instances[lower(a.instanceKey)]
	if inst == nil {
		m.active = nil
		m.restoreNative()
		return
	}

	if !registry.IsEnabled(a.group, a.asset, en) {
		m.log.Info("active replacement was disabled, stopping", "key", a.group, "file", a.asset.RelativePath)
		m.StopAll(false)
		return
	}

	m.silenceNative()

	if !m.focused() || inst.voice.State() != StateStopped {
		return
	}
	now := m.opts.Now()
	if !m.lastRestart.IsZero() && now.Sub(m.lastRestart) < m.opts.RestartDebounce {
		return
	}
	m.lastRestart = now
	inst.voice.Stop()
	inst.voice.SetVolume(vol)
	if err := inst.voice.Play(); err != nil {
		m.log.Warn("failed to restart replacement", "file", a.asset.RelativePath, "error", err)
		m.StopAll(false)
		return
	}
	m.log.Debug("restarted replacement", "key", a.group, "file", a.asset.RelativePath, "handle", inst.id)
}

// StopAll stops every voice, clears the active replacement and restores the
// native volume. With dispose, loaded handles are released too.
func (m *Manager) StopAll(dispose bool) {
	for _, inst := range m.distinct() {
		inst.voice.Stop()
		if dispose {
			m.close(inst)
		}
	}
	if dispose {
		m.instances = map[string]*instance{}
	}
	clear(m.scoped)
	m.active = nil
	m.last = lastStart{}
	m.restoreNative()
}

// StopScoped stops and disposes the instances created during the current
// scripted sequence.
func (m *Manager) StopScoped(stopNative bool) {
	for key := range m.scoped {
		inst := m.instances[key]
		if inst == nil {
			continue
		}
		if m.active != nil && m.instances[lower(m.active.instanceKey)] == inst {
			m.active = nil
			m.last = lastStart{}
		}
		inst.voice.Stop()
		m.close(inst)
		for k, other := range m.instances {
			if other == inst {
				delete(m.instances, k)
			}
		}
	}
	clear(m.scoped)

	if stopNative {
		m.safe("stop native", m.native.StopNative)
	}
	if m.active == nil {
		m.restoreNative()
	}
}

// Active returns the active replacement, if any.
func (m *Manager) Active() (Selection, bool) {
	a := m.active
	if a == nil {
		return Selection{}, false
	}
	sel := Selection{InstanceKey: a.instanceKey, MatchedKey: a.group, Asset: a.asset}
	if inst := m.instances[lower(a.instanceKey)]; inst != nil {
		sel.HandleID = inst.id
	}
	return sel, true
}

// ActiveState returns the playback state of the active replacement.
func (m *Manager) ActiveState() State {
	if m.active == nil {
		return StateStopped
	}
	if inst := m.instances[lower(m.active.instanceKey)]; inst != nil {
		return inst.voice.State()
	}
	return StateStopped
}

// Instances returns the number of loaded handles.
func (m *Manager) Instances() int {
	return len(m.distinct())
}

// Muted reports whether the native volume is currently held at zero.
func (m *Manager) Muted() bool {
	return m.savedVolume != nil
}

// SourceLabel names the origin of the active replacement, or "" when none.
func (m *Manager) SourceLabel() string {
	if m.active == nil {
		return ""
	}
	return m.active.asset.Label()
}

func (m *Manager) load(instanceKey string, a registry.Asset) (*instance, error) {
	if inst := m.instances[lower(instanceKey)]; inst != nil {
		return inst, nil
	}

	full := a.FullPath()
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetMissing, full)
		}
		return nil, err
	}

	pcm, err := m.opts.Decode(full)
	if err != nil {
		return nil, err
	}
	voice, err := m.backend.Load(pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", full, err)
	}

	inst := &instance{id: uuid.NewString(), key: instanceKey, asset: a, voice: voice}
	m.instances[lower(instanceKey)] = inst
	m.log.Debug("loaded replacement", "file", full, "handle", inst.id, "duration", pcm.Duration())
	return inst, nil
}

func (m *Manager) close(inst *instance) {
	if err := inst.voice.Close(); err != nil {
		m.log.Debug("failed to close voice", "handle", inst.id, "error", err)
	}
}

func (m *Manager) stopVoices() {
	for _, inst := range m.distinct() {
		if inst.voice.State() != StateStopped {
			inst.voice.Stop()
		}
	}
}

func (m *Manager) distinct() []*instance {
	return lo.Uniq(lo.Values(m.instances))
}

func (m *Manager) silenceNative() {
	if m.savedVolume == nil {
		v := 1.0
		m.safe("read native volume", func() { v = m.native.NativeVolume() })
		m.savedVolume = &v
	}
	m.safe("mute native", func() { m.native.SetNativeVolume(0) })
	m.safe("stop native", func() {
		if m.native.NativePlaying() {
			m.native.StopNative()
		}
	})
}

func (m *Manager) restoreNative() {
	if m.savedVolume == nil {
		return
	}
	v := *m.savedVolume
	m.savedVolume = nil
	m.safe("restore native volume", func() { m.native.SetNativeVolume(v) })
}

func (m *Manager) musicVolume() float64 {
	v := 1.0
	m.safe("read music volume", func() { v = m.native.MusicVolume() })
	return v
}

func (m *Manager) focused() bool {
	f := true
	m.safe("read focus", func() { f = m.native.Focused() })
	return f
}

// safe runs a host call, logging instead of propagating a panic.
func (m *Manager) safe(what string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Debug("host call failed", "call", what, "panic", r)
		}
	}()
	f()
}

func lower(s string) string { return strings.ToLower(s) }
