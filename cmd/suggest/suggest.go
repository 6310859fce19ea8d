package suggest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/charmbracelet/lipgloss"
	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/keys"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/scene"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/gigurra/trackswap/cmd/swap/simhost"
	"github.com/spf13/cobra"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	matchStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type Params struct {
	Track      string `pos:"true" help:"Track id requested by the host"`
	Location   string `short:"l" optional:"true" help:"Current location name"`
	Sequence   string `short:"s" optional:"true" help:"Id of the active scripted sequence"`
	Active     bool   `short:"a" optional:"true" help:"A sequence is active but its id is unknown"`
	Repeat     int    `short:"r" optional:"true" help:"How many times the track played in the sequence" default:"1"`
	SingleLine bool   `optional:"true" help:"Print one compact JSON entry per key, nothing else"`
	Dir        string `short:"d" optional:"true" help:"Directory with the base musicReplacements.json (default ~/.trackswap)"`
	Packs      string `short:"p" optional:"true" help:"Directory of add-on packs (default ~/.trackswap/packs)"`
	Settings   string `optional:"true" help:"Settings file (default ~/.trackswap/config.json)"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "suggest",
		Short: "Show the lookup keys a track request would try",
		Long: `Show the candidate keys tried for a track request, most specific first,
and a JSON skeleton that can be pasted into musicReplacements.json.

The first key with an enabled replacement wins.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "suggest: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func contextFor(params *Params) scene.Context {
	host := simhost.New()
	host.SetLocation(params.Location)
	if params.Sequence != "" || params.Active {
		host.StartSequence(params.Sequence)
	}
	return scene.Snapshot(host)
}

func run(params *Params, out io.Writer) error {
	track := strings.TrimSpace(params.Track)
	if track == "" {
		return fmt.Errorf("track id must not be blank")
	}
	ctx := contextFor(params)
	candidates := keys.Build(track, ctx, params.Repeat)

	if params.SingleLine {
		for _, line := range keys.SingleLineSuggestions(candidates) {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	}

	paths := common.Paths{Dir: params.Dir, Packs: params.Packs, Settings: params.Settings}.Resolved()
	log, _ := common.NewLogger(io.Discard, false)
	s, err := settings.Load(paths.Settings)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	reg := registry.New(registry.DirSources{BaseDir: paths.Dir, PacksDir: paths.Packs}, log)
	matched, assets, ok := reg.Resolve(candidates, s)

	_, err = io.WriteString(out, render(track, ctx, params.Repeat, candidates, matched, len(assets), ok))
	return err
}

func render(track string, ctx scene.Context, repeat int, candidates []string, matched string, files int, ok bool) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render(fmt.Sprintf("Candidate keys for %s", track)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s, repeat %d)", ctx, repeat)))
	b.WriteString("\n")

	for i, key := range candidates {
		line := fmt.Sprintf("  %d. %s", i+1, key)
		if ok && keys.Equal(key, matched) {
			line = matchStyle.Render(fmt.Sprintf("%s  <- matches %d file(s)", line, files))
		}
		b.WriteString(line + "\n")
	}
	if !ok {
		b.WriteString(dimStyle.Render("  no enabled replacement, native music plays") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(headingStyle.Render("Skeleton"))
	b.WriteString("\n")
	b.WriteString(keys.Suggestions(candidates))
	b.WriteString("\n")
	return b.String()
}
