package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luma/resp3d/protocol"
)

var (
	// Print the encoding as a quoted string
	quote bool
)

func init() {
	flags := EncodeCmd.Flags()

	flags.BoolVarP(&quote, "quote", "q", false, "Print the bytes as a quoted, escaped string")
}

var EncodeCmd = &cobra.Command{
	Use:   "encode ARG...",
	Short: "Encode a command as RESP3",
	Long: `Encode the arguments as a RESP3 array of bulk strings, the form commands
take on the wire.

Usage
	resp3d encode SET greeting hello
	resp3d encode -q PING

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wire := protocol.Encode(protocol.NewBulkStringArray(args...))

		if quote {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strconv.Quote(string(wire)))
			return err
		}

		_, err := cmd.OutOrStdout().Write(wire)
		return err
	},
}
