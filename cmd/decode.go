package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/resp3d/protocol"
)

var (
	// File to decode, stdin when empty
	decodeFile string

	// Decoder limits
	decodeMaxPayload int
	decodeMaxDepth   int
)

func init() {
	flags := DecodeCmd.Flags()

	flags.StringVarP(&decodeFile, "file", "f", "", "The file to decode, defaults to stdin")
	flags.IntVar(&decodeMaxPayload, "max-payload", 0, "The largest bulk length, count or line to accept, 0 for no limit")
	flags.IntVar(&decodeMaxDepth, "max-depth", 0, "The deepest nesting to accept, 0 for no limit")
}

var DecodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Print the RESP3 messages read from stdin or a file",
	Long: `Decode a RESP3 stream and print one line per message.

Usage
	resp3d encode PING | resp3d decode
	resp3d decode -f capture.bin

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()

		if decodeFile != "" {
			f, err := os.Open(decodeFile)
			if err != nil {
				return err
			}
			defer f.Close()

			in = f
		}

		r := protocol.NewReader(in,
			protocol.WithMaxPayloadSize(decodeMaxPayload),
			protocol.WithMaxDepth(decodeMaxDepth))

		out := cmd.OutOrStdout()
		for {
			m, err := r.ReadMessage()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("decoding: %w", err)
			}

			if _, err := fmt.Fprintln(out, m); err != nil {
				return err
			}
		}
	},
}
