package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pixyzehn/Moya"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "moya",
	Short: "Moya - request dispatch from the command line",
	Long: `Moya dispatches HTTP requests through the moya provider: stubbing,
coalescing of concurrent identical requests, plugins and metrics.

Examples:
  moya request https://api.github.com/zen
  moya request https://api.github.com/zen --stub-config stubs.yaml --name zen
  moya request https://api.github.com/users/octocat -c 5 --metrics
  moya request https://httpbin.org/post -X POST --json -p name=moya
  moya stub validate stubs.yaml`,
	Version:       moya.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := moya.GetBuildInfo()
		if !versionJSON {
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(versionCmd)
}
