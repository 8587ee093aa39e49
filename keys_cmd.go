package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/ttop/display/tui"
)

func newKeysCmd() *cobra.Command {
	var format, category string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the key bindings",
		Long: `Print every dashboard key binding.

Examples:
  ttop keys
  ttop keys --format json
  ttop keys --category scroll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeysCommand(cmd, format, category)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().StringVar(&category, "category", "", "only show one category")
	return cmd
}

// runKeysCommand prints all keybindings to the command's output.
func runKeysCommand(cmd *cobra.Command, format, category string) error {
	reg := tui.DefaultRegistry()
	if category != "" {
		entries := reg.ByCategory(tui.KeyCategory(category))
		if len(entries) == 0 {
			return fmt.Errorf("no bindings found for category %q", category)
		}
		reg = &tui.KeyRegistry{Entries: entries}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(reg.FormatJSON(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "table":
		fmt.Fprint(out, reg.FormatTable())
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
	return nil
}
