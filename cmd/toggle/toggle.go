package toggle

import (
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/spf13/cobra"
)

type Params struct {
	Dir      string `short:"d" optional:"true" help:"Directory with the base musicReplacements.json (default ~/.trackswap)"`
	Packs    string `short:"p" optional:"true" help:"Directory of add-on packs (default ~/.trackswap/packs)"`
	Settings string `optional:"true" help:"Settings file (default ~/.trackswap/config.json)"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "toggle",
		Short: "Enable or disable replacements and adjust settings interactively",
		Long: `Open an interactive list of every replacement, grouped by origin.

Changes are saved to the settings file immediately. A running engine that
watches the file picks them up without a restart.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "toggle: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func run(params *Params) error {
	m, err := load(params)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func load(params *Params) (model, error) {
	paths := common.Paths{Dir: params.Dir, Packs: params.Packs, Settings: params.Settings}.Resolved()
	log, _ := common.NewLogger(io.Discard, false)

	store, err := settings.Open(paths.Settings, log)
	if err != nil {
		return model{}, fmt.Errorf("failed to load settings: %w", err)
	}
	reg := registry.New(registry.DirSources{BaseDir: paths.Dir, PacksDir: paths.Packs}, log)
	return newModel(store, registry.GroupByOrigin(reg.ListAll())), nil
}
