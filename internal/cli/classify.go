package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

func newClassifyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify a raw JSON result payload",
		Long: `Reads a JSON result set (a file, or stdin when no file is given) and
prints the element kind of every item. Fails on the first item that is not a
recognizable scalar, vertex, edge, property or tree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open payload: %w", err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			raw, err := wire.DecodeResults(data)
			if err != nil {
				return err
			}
			elements, err := wire.ClassifyAll(raw)
			if err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Debug("payload classified", zap.Int("items", len(elements)))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(elements)
			}
			for i, el := range elements {
				fmt.Fprintf(out, "[%d] %s\n", i, el.Kind())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the classified elements as JSON")
	return cmd
}
