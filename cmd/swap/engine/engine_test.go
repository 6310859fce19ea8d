package engine

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gigurra/trackswap/cmd/swap/decode"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/gigurra/trackswap/cmd/swap/simhost"
)

type scriptedRand struct {
	vals  []int
	draws int
}

func (r *scriptedRand) IntN(n int) int {
	v := 0
	if len(r.vals) > 0 {
		v = r.vals[r.draws%len(r.vals)]
	}
	r.draws++
	return v % n
}

type fixture struct {
	t       *testing.T
	dir     string
	host    *simhost.Host
	clock   *simhost.Clock
	rand    *scriptedRand
	backend *playback.SilentBackend
	store   *settings.Store
	eng     *Engine
}

func newFixture(t *testing.T, config string, files ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, registry.FileName), config)
	for _, name := range files {
		write(t, filepath.Join(dir, name), "x")
	}

	f := &fixture{
		t:       t,
		dir:     dir,
		host:    simhost.New(),
		clock:   simhost.NewClock(time.Unix(5000, 0)),
		rand:    &scriptedRand{},
		backend: playback.NewSilentBackend(),
		store:   settings.NewMemoryStore(nil),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(registry.StaticSources{
		{Path: filepath.Join(dir, registry.FileName), BaseDir: dir, OriginID: "base", OriginName: "Base"},
	}, log)
	f.eng = New(f.host, reg,
		WithBackend(f.backend),
		WithSettings(f.store),
		WithRand(f.rand),
		WithClock(f.clock.Now),
		WithLogger(log, nil),
		WithPlayback(playback.Options{
			Decode: func(string) (*decode.PCM, error) {
				return &decode.PCM{Data: make([]byte, 8), SampleRate: 10, Channels: 1}, nil
			},
		}),
	)
	return f
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) request(track string) bool {
	f.t.Helper()
	allow := f.eng.OnTrackChange(TrackChange{TrackID: track, Interruptible: true})
	if allow {
		f.host.PlayNative(track)
	}
	return allow
}

func (f *fixture) setPercent(p int) {
	f.t.Helper()
	if err := f.store.Update(func(s *settings.Settings) { s.NativeInsteadPercent = p }); err != nil {
		f.t.Fatal(err)
	}
}

func TestScenarioA_EmptyRegistry(t *testing.T) {
	f := newFixture(t, `{}`)
	if !f.request("spring1") {
		t.Fatal("empty registry should allow native music")
	}
	if d := f.eng.LastDecision(); d.Outcome != OutcomeNoMatch {
		t.Errorf("Outcome = %v, want %v", d.Outcome, OutcomeNoMatch)
	}
	if f.eng.Status().Active {
		t.Error("nothing should be active")
	}
}

func TestScenarioB_StickyAcrossRequests(t *testing.T) {
	f := newFixture(t, `{"spring1": ["a.ogg", "b.ogg"]}`, "a.ogg", "b.ogg")
	f.rand.vals = []int{1, 0, 1, 0, 1}

	var first string
	for i := 0; i < 10; i++ {
		if f.request("spring1") {
			t.Fatalf("request %d allowed native music", i+1)
		}
		key := f.eng.LastDecision().Selection.InstanceKey
		if i == 0 {
			first = key
		} else if key != first {
			t.Errorf("request %d instance key = %q, want %q", i+1, key, first)
		}
		f.clock.Advance(time.Second)
	}
	if got := f.eng.Status().Instances; got != 1 {
		t.Errorf("Instances = %d, want 1", got)
	}
	if got := f.backend.Loaded(); got != 1 {
		t.Errorf("loaded %d voices, want 1", got)
	}
}

func TestScenarioC_RepeatIndexInSequence(t *testing.T) {
	f := newFixture(t, `{
		"theme|scriptedId=E1|repeat=1": "first.ogg",
		"theme": "theme.ogg"
	}`, "first.ogg", "theme.ogg")
	f.host.StartSequence("E1")

	f.request("theme")
	d := f.eng.LastDecision()
	if d.Repeat != 1 || d.MatchedKey != "theme|scriptedId=E1|repeat=1" {
		t.Fatalf("first request repeat %d matched %q", d.Repeat, d.MatchedKey)
	}

	f.clock.Advance(500 * time.Millisecond)
	f.request("theme")
	if d := f.eng.LastDecision(); d.Repeat != 1 {
		t.Errorf("request within window repeat = %d, want 1", d.Repeat)
	}

	f.clock.Advance(time.Second)
	f.request("theme")
	d = f.eng.LastDecision()
	if d.Repeat != 2 || d.MatchedKey != "theme" {
		t.Errorf("later request repeat %d matched %q, want 2 and theme", d.Repeat, d.MatchedKey)
	}
	if d.Selection.Asset.RelativePath != "theme.ogg" {
		t.Errorf("playing %q, want theme.ogg", d.Selection.Asset.RelativePath)
	}
}

func TestScenarioD_WeatherBlockedInSequence(t *testing.T) {
	f := newFixture(t, `{"theme": "theme.ogg", "rain": "rain.ogg"}`, "theme.ogg", "rain.ogg")
	f.host.StartSequence("E7")
	f.request("theme")
	loaded := f.backend.Loaded()

	f.clock.Advance(time.Second)
	if f.request("rain") {
		t.Fatal("weather cue should be blocked while the sequence has custom music")
	}
	if d := f.eng.LastDecision(); d.Outcome != OutcomeWeather {
		t.Errorf("Outcome = %v, want %v", d.Outcome, OutcomeWeather)
	}
	if f.backend.Loaded() != loaded {
		t.Error("blocked weather cue must not load anything")
	}
	if sel := f.eng.Status().Selection; sel.Asset.RelativePath != "theme.ogg" {
		t.Errorf("active = %q, want theme.ogg kept", sel.Asset.RelativePath)
	}
}

func TestWeatherOutsideSequenceResolvesNormally(t *testing.T) {
	f := newFixture(t, `{}`)
	if !f.request("rain") {
		t.Error("weather without sequence music should fall through to native")
	}
	if d := f.eng.LastDecision(); d.Outcome != OutcomeNoMatch {
		t.Errorf("Outcome = %v", d.Outcome)
	}
}

func TestNativeInsteadPercent(t *testing.T) {
	tests := []struct {
		percent    int
		roll       int
		wantNative bool
	}{
		{0, 0, false},
		{100, 99, true},
		{100, 0, true},
		{30, 29, true},
		{30, 30, false},
	}
	for _, tt := range tests {
		f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
		f.setPercent(tt.percent)
		f.rand.vals = []int{tt.roll}

		allow := f.request("spring1")
		if allow != tt.wantNative {
			t.Errorf("percent %d roll %d: allowNative = %v, want %v", tt.percent, tt.roll+1, allow, tt.wantNative)
		}
		if tt.percent == 0 && f.rand.draws != 0 {
			t.Errorf("percent 0 should not draw, drew %d", f.rand.draws)
		}
	}
}

func TestNativeInsteadPercent_NoMatchDoesNotRoll(t *testing.T) {
	f := newFixture(t, `{}`)
	f.setPercent(100)
	f.request("spring1")
	if f.rand.draws != 0 || f.eng.LastDecision().Outcome != OutcomeNoMatch {
		t.Errorf("draws %d outcome %v", f.rand.draws, f.eng.LastDecision().Outcome)
	}
}

func TestNativeRollOncePerOccurrence(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.setPercent(50)
	f.rand.vals = []int{10, 80}

	if !f.request("spring1") {
		t.Fatal("roll 11 <= 50 should force native")
	}
	for i := 0; i < 3; i++ {
		f.clock.Advance(300 * time.Millisecond)
		if !f.request("spring1") {
			t.Errorf("repeat %d within the occurrence re-rolled", i)
		}
	}
	if f.rand.draws != 1 {
		t.Errorf("draws = %d, want 1", f.rand.draws)
	}

	f.clock.Advance(2 * time.Second)
	if f.request("spring1") {
		t.Error("roll 81 > 50 should play the replacement")
	}
	if f.rand.draws != 2 {
		t.Errorf("draws = %d, want 2", f.rand.draws)
	}
}

func TestNativeRollClearsSequenceMusic(t *testing.T) {
	f := newFixture(t, `{"theme": "theme.ogg"}`, "theme.ogg")
	f.host.StartSequence("E1")
	f.request("theme")

	f.setPercent(100)
	f.clock.Advance(2 * time.Second)
	if !f.request("theme") {
		t.Fatal("percent 100 should force native")
	}
	if !f.request("rain") {
		t.Error("weather should no longer be blocked after native took over")
	}
}

func TestBlankTrackStopsEverything(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.request("spring1")
	if !f.request("  ") {
		t.Fatal("blank id should allow native")
	}
	if f.eng.Status().Active {
		t.Error("blank id should stop replacements")
	}
	if f.host.NativeVolume() != 1 {
		t.Errorf("native volume = %v, want restored", f.host.NativeVolume())
	}
}

func TestSilenceIsDebounced(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.request("spring1")
	if !f.request("none") || f.eng.Status().Active {
		t.Fatal("first silence request should stop replacements")
	}

	f.clock.Advance(100 * time.Millisecond)
	f.request("spring1")
	f.clock.Advance(100 * time.Millisecond)
	f.request("none")
	if !f.eng.Status().Active {
		t.Error("silence within the window should be collapsed into the previous stop")
	}

	f.clock.Advance(time.Second)
	f.request("NONE")
	if f.eng.Status().Active {
		t.Error("silence after the window should stop replacements")
	}
}

func TestReplacementStopsNative(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.host.PlayNative("summer1")

	if f.request("spring1") {
		t.Fatal("replacement should block native")
	}
	if _, playing := f.host.NativeTrack(); playing {
		t.Error("native track should be stopped")
	}
	if f.host.NativeVolume() != 0 {
		t.Error("native should be muted")
	}
	if got := f.eng.Status().Source; got != "base (Base)" {
		t.Errorf("Source = %q", got)
	}
}

func TestMissingFileFallsBackToNative(t *testing.T) {
	f := newFixture(t, `{"spring1": "gone.ogg"}`)
	if !f.request("spring1") {
		t.Fatal("missing file should allow native")
	}
	if d := f.eng.LastDecision(); d.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %v, want %v", d.Outcome, OutcomeFailed)
	}
	if f.host.NativeVolume() != 1 {
		t.Error("native should not stay muted")
	}
}

func TestDisabledReplacementFallsThrough(t *testing.T) {
	f := newFixture(t, `{
		"spring1|location=Farm": "farm.ogg",
		"spring1": "a.ogg"
	}`, "farm.ogg", "a.ogg")
	farm := registry.Asset{RelativePath: "farm.ogg", OriginID: "base", OriginName: "Base", BaseDir: f.dir}
	if err := f.store.Update(func(s *settings.Settings) {
		s.DisabledReplacementIDs.Add(registry.ReplacementID("spring1|location=Farm", farm))
	}); err != nil {
		t.Fatal(err)
	}

	f.request("spring1")
	if d := f.eng.LastDecision(); d.MatchedKey != "spring1" {
		t.Errorf("MatchedKey = %q, want fallback to spring1", d.MatchedKey)
	}
}

func TestDisablingActiveStopsOnTick(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.request("spring1")

	if err := f.store.Update(func(s *settings.Settings) { s.DisabledOriginIDs.Add("BASE") }); err != nil {
		t.Fatal(err)
	}
	f.eng.OnTick()
	if f.eng.Status().Active {
		t.Error("disabled origin should stop on the next tick")
	}
	if f.host.NativeVolume() != 1 {
		t.Error("native volume should be restored")
	}
}

func TestSequenceEndDisposesScoped(t *testing.T) {
	f := newFixture(t, `{"theme": "theme.ogg"}`, "theme.ogg")
	f.host.StartSequence("E1")
	f.request("theme")
	f.eng.OnTick()
	stops := f.host.StopCalls()

	f.host.EndSequence()
	f.eng.OnTick()

	st := f.eng.Status()
	if st.Active || st.Instances != 0 {
		t.Errorf("status after sequence end = %+v", st)
	}
	if f.host.StopCalls() <= stops {
		t.Error("sequence end should stop native music too")
	}
	if f.host.NativeVolume() != 1 {
		t.Error("native volume should be restored")
	}
}

func TestSequenceChangeResetsCounters(t *testing.T) {
	f := newFixture(t, `{"theme": "theme.ogg"}`, "theme.ogg")
	f.host.StartSequence("E1")
	f.request("theme")
	f.clock.Advance(time.Second)
	f.request("theme")
	if got := f.eng.LastDecision().Repeat; got != 2 {
		t.Fatalf("Repeat = %d, want 2", got)
	}

	f.host.StartSequence("E2")
	f.clock.Advance(time.Second)
	f.request("theme")
	if got := f.eng.LastDecision().Repeat; got != 1 {
		t.Errorf("Repeat after sequence change = %d, want 1", got)
	}
}

func TestUnknownSequenceIDUsesActiveKeys(t *testing.T) {
	f := newFixture(t, `{"theme|sequenceActive": "seq.ogg", "theme": "theme.ogg"}`, "seq.ogg", "theme.ogg")
	f.host.StartSequence("")
	f.request("theme")
	if d := f.eng.LastDecision(); d.MatchedKey != "theme|sequenceActive" {
		t.Errorf("MatchedKey = %q", d.MatchedKey)
	}
}

func TestMarkConfigChangedReloadsOnNextCall(t *testing.T) {
	f := newFixture(t, `{}`, "a.ogg")
	if !f.request("spring1") {
		t.Fatal("nothing configured yet")
	}

	write(t, filepath.Join(f.dir, registry.FileName), `{"spring1": "a.ogg"}`)
	f.eng.MarkConfigChanged()
	f.eng.OnTick()

	f.clock.Advance(time.Second)
	if f.request("spring1") {
		t.Error("replacement should apply after reload")
	}
	entries := f.eng.ListAll()
	if len(entries) != 1 || entries[0].Key != "spring1" {
		t.Errorf("ListAll() = %+v", entries)
	}
}

func TestShowSuggestionsLogsCandidates(t *testing.T) {
	var buf strings.Builder
	f := newFixture(t, `{}`)
	f.eng.log = slog.New(slog.NewTextHandler(&buf, nil))
	f.host.SetLocation("Town")
	f.request("spring1")

	if !strings.Contains(buf.String(), "spring1|location=Town") {
		t.Errorf("log should contain candidate keys:\n%s", buf.String())
	}
}

func TestDebugLevelFollowsSettings(t *testing.T) {
	f := newFixture(t, `{}`)
	level := new(slog.LevelVar)
	f.eng.opts.Level = level

	f.request("spring1")
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug by default", level.Level())
	}
	if err := f.store.Update(func(s *settings.Settings) { s.EnableDebugLogging = false }); err != nil {
		t.Fatal(err)
	}
	f.eng.OnTick()
	if level.Level() != slog.LevelInfo {
		t.Errorf("level = %v, want info", level.Level())
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.request("spring1")
	f.eng.Close()

	if f.host.NativeVolume() != 1 {
		t.Error("Close should restore native volume")
	}
	if !f.request("spring1") {
		t.Error("closed engine should always allow native")
	}
}

func TestHostPanicsFallBackToNative(t *testing.T) {
	f := newFixture(t, `{"spring1": "a.ogg"}`, "a.ogg")
	f.eng.host = panickyHost{f.host}
	f.eng.OnTick()
	f.request("spring1")
}

type panickyHost struct{ *simhost.Host }

func (panickyHost) Location() string { panic("no location") }
func (panickyHost) StopNative()      { panic("no player") }
