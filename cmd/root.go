package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/resp3d/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "resp3d",
	Short: "RESP3 codec tools and a small key value server speaking it",
	Long: `resp3d encodes and decodes RESP3, the protocol spoken by in-memory data
stores, and runs a small key value server that speaks it.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(EncodeCmd)
	RootCmd.AddCommand(DecodeCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
