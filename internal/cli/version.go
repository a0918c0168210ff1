package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the memento release version.
const Version = "0.1.0"

const modulePath = "github.com/mantidproject/mantid-sub073"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the memento version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "memento v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
