package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/huangang/promptlib/internal/services"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	file    string
	content string
	texts   []string
	numbers []string
	lists   []string
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Substitute values into a template",
		Long: `Render replaces every {{name}} that has a value. Placeholders without a
value are left as they are.`,
		Example: `  promptctl render --content "Write about {{topic}}" --set topic=cats
  promptctl render -f story.txt --number words=500 --list tags=a,b`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := opts.readContent()
			if err != nil {
				return err
			}
			values, err := opts.values()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), services.RenderTemplate(content, values))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the template from a file (- for stdin)")
	cmd.Flags().StringVar(&opts.content, "content", "", "template text")
	cmd.Flags().StringArrayVar(&opts.texts, "set", nil, "text value as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.numbers, "number", nil, "number value as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.lists, "list", nil, "list value as name=a,b,c (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("file", "content")
	return cmd
}

func (o *renderOptions) readContent() (string, error) {
	if o.file == "" {
		return o.content, nil
	}
	var (
		data []byte
		err  error
	)
	if o.file == "-" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(o.file)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func (o *renderOptions) values() (map[string]services.FieldValue, error) {
	values := make(map[string]services.FieldValue)
	for _, kv := range o.texts {
		name, value, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		values[name] = services.TextValue(value)
	}
	for _, kv := range o.numbers {
		name, value, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("--number %s: %q is not a number", name, value)
		}
		values[name] = services.NumberValue(n)
	}
	for _, kv := range o.lists {
		name, value, err := splitAssignment(kv)
		if err != nil {
			return nil, err
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		values[name] = services.ListValue(items)
	}
	return values, nil
}

func splitAssignment(kv string) (string, string, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", kv)
	}
	return name, value, nil
}
