package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/resp3d/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of resp3d",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), meta.GetInfo())
		return err
	},
}
