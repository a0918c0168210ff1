package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/memento"
)

func newUnregisterCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <name>",
		Short: "Remove a workspace row",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				err := s.mutate(cmd.Context(), func(c *memento.Collection) error {
					return c.Unregister(args[0])
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unregistered %s\n", args[0])
				return nil
			})
		},
	}
}
