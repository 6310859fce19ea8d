package simulate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gigurra/trackswap/cmd/swap/decode"
	"github.com/gigurra/trackswap/cmd/swap/engine"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
)

type zeroRand struct{}

func (zeroRand) IntN(int) int { return 0 }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestSim(t *testing.T, config string, files ...string) (*Sim, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, registry.FileName), config)
	for _, name := range files {
		writeFile(t, filepath.Join(dir, name), "x")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(registry.DirSources{BaseDir: dir}, log)
	out := &bytes.Buffer{}
	sim := NewSim(out, reg, settings.NewMemoryStore(nil), nil,
		engine.WithLogger(log, nil),
		engine.WithRand(zeroRand{}),
		engine.WithPlayback(playback.Options{
			Decode: func(string) (*decode.PCM, error) {
				return &decode.PCM{Data: make([]byte, 8), SampleRate: 10, Channels: 1}, nil
			},
		}),
	)
	t.Cleanup(sim.Close)
	return sim, out
}

func lines(out *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func TestRun_ReplacementLifecycle(t *testing.T) {
	sim, out := newTestSim(t, `{"spring1": "a.ogg"}`, "a.ogg")

	script := `
# replacement starts, then the host repeats itself
location Town
request spring1
request spring1
wait 1s
status
request none
status
`
	if err := sim.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := lines(out)
	want := []string{
		"[+0.000s] location Town",
		"[+0.000s] request spring1: replacement spring1 -> a.ogg [base] started",
		"[+0.000s] request spring1: duplicate spring1 -> a.ogg [base]",
	}
	for i, w := range want {
		if i >= len(got) || got[i] != w {
			t.Fatalf("line %d = %q, want %q\nfull output:\n%s", i+1, at(got, i), w, out.String())
		}
	}
	if !strings.Contains(at(got, 3), "status: a.ogg playing (spring1)") || !strings.Contains(at(got, 3), "muted true") {
		t.Errorf("status line = %q", at(got, 3))
	}
	if at(got, 4) != "[+1.000s] request none: silence, native plays" {
		t.Errorf("silence line = %q", at(got, 4))
	}
	if !strings.Contains(at(got, 5), "status: no replacement, native none, muted false") {
		t.Errorf("final status = %q", at(got, 5))
	}
}

func TestRun_FinishedVoiceRestartsOnTick(t *testing.T) {
	sim, out := newTestSim(t, `{"spring1": "a.ogg"}`, "a.ogg")

	script := "request spring1\nfinish\nstatus\nwait 1s\nstatus\nrequest spring1\n"
	if err := sim.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := lines(out)
	if at(got, 1) != "[+0.000s] finished 1 voice(s)" {
		t.Errorf("finish line = %q", at(got, 1))
	}
	if !strings.Contains(at(got, 2), "a.ogg stopped") {
		t.Errorf("status after finish = %q", at(got, 2))
	}
	if !strings.Contains(at(got, 3), "a.ogg playing") {
		t.Errorf("status after tick = %q", at(got, 3))
	}
	if at(got, 4) != "[+1.000s] request spring1: replacement (repeat 2) spring1 -> a.ogg [base]" {
		t.Errorf("second request line = %q", at(got, 4))
	}
}

func TestRun_SequenceEndStopsReplacement(t *testing.T) {
	sim, out := newTestSim(t, `{"event1|scriptedId=E1": "e.ogg"}`, "e.ogg")

	script := "sequence E1\nrequest event1\nsequence end\ntick\nstatus\n"
	if err := sim.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := lines(out)
	if at(got, 1) != "[+0.000s] request event1: replacement event1|scriptedId=E1 -> e.ogg [base] started" {
		t.Errorf("request line = %q", at(got, 1))
	}
	if !strings.Contains(at(got, 3), "status: no replacement") {
		t.Errorf("status after sequence end = %q", at(got, 3))
	}
}

func TestRun_PercentForcesNative(t *testing.T) {
	sim, out := newTestSim(t, `{"spring1": "a.ogg"}`, "a.ogg")

	if err := sim.Run(strings.NewReader("percent 150\nrequest spring1\n")); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := lines(out)
	if at(got, 0) != "[+0.000s] native instead percent 100" {
		t.Errorf("percent line = %q", at(got, 0))
	}
	if at(got, 1) != "[+0.000s] request spring1: native-roll spring1, native plays" {
		t.Errorf("request line = %q", at(got, 1))
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown command", "location Farm\n\ndance\n", "line 3: unknown command 'dance'"},
		{"bad duration", "wait soon", "line 1: invalid duration 'soon'"},
		{"bad focus", "focus maybe", "line 1: focus takes 'on' or 'off'"},
		{"bad volume", "volume 2", "line 1: volume must be between 0 and 1"},
		{"missing sequence id", "sequence", "line 1: sequence needs an id"},
		{"bad tick", "tick 0", "line 1: invalid tick count '0'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := newTestSim(t, `{}`)
			err := sim.Run(strings.NewReader(tt.script))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRunCommand_ScriptFile(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	writeFile(t, filepath.Join(base, registry.FileName), `{"spring1": "a.wav"}`)

	f, err := os.Create(filepath.Join(base, "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Take(800, generators.Silence(-1)), format); err != nil {
		t.Fatalf("wav.Encode: %v", err)
	}
	_ = f.Close()

	scriptPath := filepath.Join(root, "script.txt")
	writeFile(t, scriptPath, "location Farm\nrequest spring1\n")

	var out bytes.Buffer
	err = run(context.Background(), &Params{
		Script:   scriptPath,
		Seed:     7,
		Dir:      base,
		Packs:    filepath.Join(root, "packs"),
		Settings: filepath.Join(root, "config.json"),
	}, &out)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "request spring1: replacement spring1 -> a.wav [base] started") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(root, "config.json")); !os.IsNotExist(err) {
		t.Error("simulate must not write the settings file")
	}
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
