package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/huangang/promptlib/internal/services"
	"github.com/spf13/cobra"
)

var stdin io.Reader = os.Stdin

func readAllStdin() ([]byte, error) {
	return io.ReadAll(stdin)
}

func newPlaceholdersCmd() *cobra.Command {
	var (
		file  string
		spans bool
	)
	cmd := &cobra.Command{
		Use:   "placeholders [content]",
		Short: "List the placeholders of a template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := renderOptions{file: file}
			if len(args) == 1 {
				opts.content = args[0]
			}
			content, err := opts.readContent()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if spans {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(services.HighlightPlaceholders(content))
			}
			for _, name := range services.PlaceholderNames(content) {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the template from a file (- for stdin)")
	cmd.Flags().BoolVar(&spans, "spans", false, "print byte spans as JSON")
	return cmd
}
