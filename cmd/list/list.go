package list

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/trackswap/cmd/common"
	"github.com/gigurra/trackswap/cmd/swap/keys"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type Params struct {
	Dir      string `short:"d" optional:"true" help:"Directory with the base musicReplacements.json (default ~/.trackswap)"`
	Packs    string `short:"p" optional:"true" help:"Directory of add-on packs (default ~/.trackswap/packs)"`
	Settings string `optional:"true" help:"Settings file (default ~/.trackswap/config.json)"`
	JSON     bool   `long:"json" help:"Output as JSON"`
	Verbose  bool   `short:"v" optional:"true" help:"Log while loading replacement files"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "list",
		Short:       "List every configured replacement, grouped by origin",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "list: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// Item is one (key, asset) pair with its enabled state.
type Item struct {
	OriginID      string `json:"originId"`
	OriginName    string `json:"originName"`
	Key           string `json:"key"`
	Track         string `json:"track"`
	File          string `json:"file"`
	ReplacementID string `json:"replacementId"`
	Enabled       bool   `json:"enabled"`
	OriginEnabled bool   `json:"originEnabled"`
}

func run(params *Params, out io.Writer) error {
	paths := common.Paths{Dir: params.Dir, Packs: params.Packs, Settings: params.Settings}.Resolved()
	log, _ := common.NewLogger(os.Stderr, params.Verbose)

	s, err := settings.Load(paths.Settings)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	reg := registry.New(registry.DirSources{BaseDir: paths.Dir, PacksDir: paths.Packs}, log)
	groups := registry.GroupByOrigin(reg.ListAll())

	if params.JSON {
		data, err := json.MarshalIndent(Items(groups, s), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if len(groups) == 0 {
		_, err := fmt.Fprintf(out, "No replacements configured. Create %s to get started.\n",
			filepath.Join(paths.Dir, registry.FileName))
		return err
	}
	render(out, groups, s, getTermWidth())
	return nil
}

// Items flattens groups in display order.
func Items(groups []registry.OriginGroup, s *settings.Settings) []Item {
	return lo.FlatMap(groups, func(g registry.OriginGroup, _ int) []Item {
		return lo.Map(g.Entries, func(e registry.Entry, _ int) Item {
			id := registry.ReplacementID(e.Key, e.Asset)
			return Item{
				OriginID:      g.OriginID,
				OriginName:    g.OriginName,
				Key:           e.Key,
				Track:         keys.TrackName(e.Key),
				File:          e.Asset.RelativePath,
				ReplacementID: id,
				Enabled:       s.ReplacementEnabled(id),
				OriginEnabled: s.OriginEnabled(g.OriginID),
			}
		})
	})
}

func render(out io.Writer, groups []registry.OriginGroup, s *settings.Settings, width int) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetAllowedRowLength(width)

	t.AppendHeader(table.Row{"Origin", "Track", "Key", "File", "State"})

	for i, g := range groups {
		if i > 0 {
			t.AppendSeparator()
		}
		for _, item := range Items([]registry.OriginGroup{g}, s) {
			t.AppendRow(table.Row{
				g.OriginName + " [" + g.OriginID + "]",
				item.Track,
				item.Key,
				item.File,
				stateLabel(item),
			})
		}
	}

	total := lo.SumBy(groups, func(g registry.OriginGroup) int { return len(g.Entries) })
	t.AppendFooter(table.Row{"", "", "", "Total", total})
	t.Render()
}

func stateLabel(item Item) string {
	switch {
	case !item.OriginEnabled:
		return text.FgHiBlack.Sprint("origin off")
	case !item.Enabled:
		return text.FgHiRed.Sprint("off")
	default:
		return text.FgGreen.Sprint("on")
	}
}

func getTermWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 120
}
