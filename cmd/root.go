package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/glidecore/cmd/bench"
	"github.com/ValentinKolb/glidecore/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "glide",
		Short: "request framing engine for redis/valkey clients",
		Long: fmt.Sprintf(`glidecore (v%s)

The native core of a multi-language Redis/Valkey client: it decodes
length-prefixed request frames from a socket, resolves their arguments
and writes back framed responses.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of glidecore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("glidecore v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
