package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/aswan/cmd/gen"
	"github.com/luma/aswan/internal/meta"
)

var rootCmd = &cobra.Command{
	Use:   "aswan",
	Short: "Talk to a GnuPG-family agent over its unix domain socket",
	Long: `Aswan is a client for the line-based protocol GnuPG-family agents
speak over their unix domain sockets.

The library lives under protocol/ and client/; this binary is a thin
consumer of it for poking at an agent by hand or from another machine.`,
	Version: meta.Version,
}

func init() {
	info := meta.GetInfo()

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"aswan %s (build %s, branch %s, built %s, %s)\n",
		info.Version, info.Build, info.Branch, info.BuildTime, info.GoVersion))

	rootCmd.AddCommand(ConnectCmd)
	rootCmd.AddCommand(ServeCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
