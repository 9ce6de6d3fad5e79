package commands

import (
	"encoding/json"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/xaionaro-go/liverecorder/pkg/buildvars"
)

type buildVars struct {
	Version   string `json:",omitempty"`
	GitCommit string `json:",omitempty"`
	BuildDate string `json:",omitempty"`
}

type buildInfo struct {
	BuildVars *buildVars      `json:",omitempty"`
	GoVersion string          `json:",omitempty"`
	Main      *debug.Module   `json:",omitempty"`
	Deps      []*debug.Module `json:",omitempty"`
}

func getBuildInfo() buildInfo {
	result := buildInfo{
		BuildVars: &buildVars{
			Version:   buildvars.Version,
			GitCommit: buildvars.GitCommit,
			BuildDate: buildvars.BuildDateString,
		},
	}
	if *result.BuildVars == (buildVars{}) {
		result.BuildVars = nil
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return result
	}
	result.GoVersion = bi.GoVersion
	result.Main = &bi.Main
	result.Deps = bi.Deps
	return result
}

func printVersion(cmd *cobra.Command, args []string) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", " ")
	assertNoError(cmd.Context(), enc.Encode(getBuildInfo()))
}
