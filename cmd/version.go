package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/ondus-bridge/version"
)

var _versionCmdOpts struct {
	asJSON bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the bridge version and the User-Agent it sends to Ondus",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), viper.GetBool("version.json"))
	},
}

func init() {
	versionCmd.Flags().BoolVar(&_versionCmdOpts.asJSON, "json", false, "print build details as JSON")
	errPanic(viper.GetViper().BindPFlag("version.json", versionCmd.Flags().Lookup("json")))

	rootCmd.AddCommand(versionCmd)
}

type buildInfo struct {
	Version   string `json:"version"`
	UserAgent string `json:"userAgent"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   version.Version,
		UserAgent: version.UserAgent(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func writeVersion(w io.Writer, asJSON bool) error {
	info := currentBuild()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return errors.Wrap(enc.Encode(info), "encoding version")
	}

	_, err := fmt.Fprintf(w, "ondus-bridge %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	return err
}
