package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version and revision",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		fmt.Println(versionString(info))
	},
}

// versionString prefers the ldflags version, then the module version that
// `go install` records, then "(devel)". A VCS revision is appended when
// the binary was built from a checkout.
func versionString(info *debug.BuildInfo) string {
	v := version
	if v == "" && info != nil {
		v = info.Main.Version
	}
	if v == "" {
		v = "(devel)"
	}
	out := "conjugar " + v
	if info == nil {
		return out
	}

	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev != "" {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if dirty {
			rev += "-dirty"
		}
		out += fmt.Sprintf(" (%s)", rev)
	}
	return out + " " + info.GoVersion
}
