package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/memento"
)

func newInitCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize memento storage",
		Long:  "Create configuration and data directories, then write an empty table snapshot.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				if err := s.mutate(cmd.Context(), func(*memento.Collection) error { return nil }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "memento initialized in %s\n", s.cfg.DataDir)
				return nil
			})
		},
	}
}
