package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/trackswap/cmd/list"
	"github.com/gigurra/trackswap/cmd/probe"
	"github.com/gigurra/trackswap/cmd/simulate"
	"github.com/gigurra/trackswap/cmd/suggest"
	"github.com/gigurra/trackswap/cmd/toggle"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "trackswap",
		Short:   "Replace a host's music tracks with your own",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			suggest.Cmd(),
			list.Cmd(),
			toggle.Cmd(),
			simulate.Cmd(),
			probe.Cmd(),
		},
	}.Run()
}

func appVersion() string {
	bi, hasBuilInfo := debug.ReadBuildInfo()
	if !hasBuilInfo {
		return "unknown-(no build info)"
	}

	versionString := bi.Main.Version
	if versionString == "" {
		versionString = "unknown-(no version)"
	}

	return versionString
}
