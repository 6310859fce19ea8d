package simulate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/engine"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/gigurra/trackswap/cmd/swap/watch"
	"github.com/spf13/cobra"
)

type Params struct {
	Script   string `pos:"true" optional:"true" help:"Script file to run ('-' or empty reads stdin)"`
	Audio    bool   `short:"a" optional:"true" help:"Play through the speaker in real time and reload on file changes"`
	Seed     int64  `optional:"true" help:"Random seed for picks and native rolls (0 picks one)" default:"0"`
	Dir      string `short:"d" optional:"true" help:"Directory with the base musicReplacements.json (default ~/.trackswap)"`
	Packs    string `short:"p" optional:"true" help:"Directory of add-on packs (default ~/.trackswap/packs)"`
	Settings string `optional:"true" help:"Settings file (default ~/.trackswap/config.json)"`
	Verbose  bool   `short:"v" optional:"true" help:"Force debug logging"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "simulate",
		Short: "Replay a script of host music events against the engine",
		Long: `Replay a script of host events, one command per line:

  location <name>          change location (no name = unknown)
  sequence <id>|?|end      start a sequence (? = unknown id) or end it
  request [track]          host asks for a track (none = blank)
  tick [n]                 run n host updates
  wait <duration>          let time pass, e.g. 500ms
  volume <0..1>            set the host music volume
  focus on|off             window focus
  finish                   end every playing voice
  reload                   re-read replacement files
  percent <n>              set the native-instead percentage
  status                   print what is playing

Settings changes made by the script are not saved.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(cmd.Context(), params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func run(ctx context.Context, params *Params, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	paths := common.Paths{Dir: params.Dir, Packs: params.Packs, Settings: params.Settings}.Resolved()

	script, closeScript, err := openScript(params.Script)
	if err != nil {
		return err
	}
	defer closeScript()

	s, err := settings.Load(paths.Settings)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	store := settings.NewMemoryStore(s)

	log, level := common.NewLogger(os.Stderr, params.Verbose || s.EnableDebugLogging)
	reg := registry.New(registry.DirSources{BaseDir: paths.Dir, PacksDir: paths.Packs}, log)

	seed := uint64(params.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	if params.Verbose {
		level = nil
	}
	opts := []engine.Option{
		engine.WithRand(rand.New(rand.NewPCG(seed, seed))),
		engine.WithLogger(log, level),
	}

	var backend playback.Backend
	if params.Audio {
		if !playback.AudioAvailable {
			return fmt.Errorf("--audio is not available in this build")
		}
		backend = playback.NewSpeakerBackend()
	}

	sim := NewSim(out, reg, store, backend, opts...)
	defer sim.Close()

	if params.Audio {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		w, err := newWatcher(paths, sim.Engine(), store, log)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn("file watcher stopped", "error", err)
			}
		}()
	}

	return sim.Run(script)
}

// newWatcher marks the engine for reload when replacement files change and
// reloads settings in place when the settings file changes.
func newWatcher(paths common.Paths, eng *engine.Engine, store *settings.Store, log *slog.Logger) (*watch.Watcher, error) {
	reloadSettings := func() {
		s, err := settings.Load(paths.Settings)
		if err != nil {
			log.Warn("failed to reload settings, keeping previous", "path", paths.Settings, "error", err)
			return
		}
		_ = store.Update(func(c *settings.Settings) { *c = *s })
		log.Info("settings reloaded", "path", paths.Settings)
	}
	return watch.New([]watch.Target{
		{Name: "base", Dir: paths.Dir, Files: []string{registry.FileName}, OnChange: eng.MarkConfigChanged},
		{Name: "packs", Dir: paths.Packs, Recursive: true, Files: []string{registry.FileName, registry.ManifestName}, OnChange: eng.MarkConfigChanged},
		{Name: "settings", Dir: filepath.Dir(paths.Settings), Files: []string{filepath.Base(paths.Settings)}, OnChange: reloadSettings},
	}, watch.DefaultDebounce, log)
}

func openScript(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open script: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
