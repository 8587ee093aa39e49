package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gitlab.com/tinyland/lab/ttop/docs/manpage"
)

// Build-time variables, set via ldflags:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ttop %s (%s) built %s\n", version, commit, date)
		},
	}
}

func newManCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "man",
		Short: "Print the man page in roff format",
		Long: `Print the man page in roff format.

Examples:
  ttop man | man -l -
  ttop man > ~/.local/share/man/man1/ttop.1`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			root := cmd.Root()
			fmt.Fprint(cmd.OutOrStdout(), manpage.Generate(manpage.Info{
				Version: version,
				Commit:  commit,
				Date:    date,
				Flags:   []*pflag.FlagSet{root.PersistentFlags(), root.LocalNonPersistentFlags()},
			}))
		},
	}
}
