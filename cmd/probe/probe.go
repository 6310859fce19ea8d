package probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/decode"
	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/spf13/cobra"
)

var ErrNoAudio = errors.New("audio playback is not available in this build")

type Params struct {
	File    string  `pos:"true" help:"Audio file to decode (.wav or .ogg)"`
	Play    bool    `optional:"true" help:"Play the decoded audio through the speaker"`
	Seconds int     `short:"s" optional:"true" help:"Stop playback after this many seconds (0 plays it all)" default:"0"`
	Volume  float64 `optional:"true" help:"Playback volume between 0 and 1" default:"1"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "probe",
		Short:       "Decode an audio file and show its format",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "probe: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func run(params *Params, out io.Writer) error {
	pcm, err := decode.File(params.File)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, describe(params.File, pcm)); err != nil {
		return err
	}
	if !params.Play {
		return nil
	}
	if !playback.AudioAvailable {
		return ErrNoAudio
	}
	return play(playback.NewSpeakerBackend(), pcm, params)
}

func describe(path string, pcm *decode.PCM) string {
	layout := "stereo"
	if pcm.Channels == 1 {
		layout = "mono"
	}
	return fmt.Sprintf("%s\n  format:   16-bit PCM, %s\n  rate:     %d Hz\n  frames:   %d\n  duration: %s\n  size:     %d bytes\n",
		path, layout, pcm.SampleRate, pcm.Frames(), pcm.Duration().Round(time.Millisecond), len(pcm.Data))
}

func play(backend playback.Backend, pcm *decode.PCM, params *Params) error {
	voice, err := backend.Load(pcm)
	if err != nil {
		return err
	}
	defer func() { _ = voice.Close() }()

	voice.SetVolume(params.Volume)
	if err := voice.Play(); err != nil {
		return err
	}

	limit := pcm.Duration()
	if params.Seconds > 0 {
		limit = min(limit, time.Duration(params.Seconds)*time.Second)
	}
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) && voice.State() == playback.StatePlaying {
		time.Sleep(50 * time.Millisecond)
	}
	voice.Stop()
	return nil
}
