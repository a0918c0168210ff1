package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/memento"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

func newSetCmd(f *rootFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "set <row|name> <column=value>...",
		Short: "Stage values for one workspace and commit them",
		Long: "Set stages every assignment on the workspace memento, then commits them\n" +
			"together. With --dry-run the staged values are rolled back instead.",
		Example: "  memento set MAR11001 Instrument=MERLIN a=5.43 alpha=90",
		Args:    minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				row     int
				changed []string
			)
			err := withSession(cmd, f, func(s *session) error {
				return s.edit(cmd.Context(), args[0], func(m *memento.Memento) (bool, error) {
					row = m.Row()
					var err error
					if changed, err = stage(m, args[1:]); err != nil {
						_ = m.Rollback()
						return false, err
					}
					if dryRun {
						if err := m.Rollback(); err != nil {
							return false, sysError(err)
						}
						return false, nil
					}
					return true, nil
				})
			})
			if err != nil {
				return err
			}

			if f.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"row":       row,
					"changed":   changed,
					"committed": !dryRun,
				})
			}
			verb := "committed"
			if dryRun {
				verb = "would change"
			}
			if len(changed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", verb, strings.Join(changed, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the changes without committing them")
	return cmd
}

// stage applies column=value assignments to m and returns the changed items.
func stage(m *memento.Memento, assignments []string) ([]string, error) {
	for _, a := range assignments {
		column, text, ok := strings.Cut(a, "=")
		if !ok || column == "" {
			return nil, fmt.Errorf("%w: assignment %q is not column=value", errUsage, a)
		}
		it, err := m.Item(column)
		if err != nil {
			return nil, err
		}
		v, err := types.ParseValue(it.Kind(), text)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		if err := it.Set(v); err != nil {
			return nil, err
		}
	}
	changed, err := m.Changed()
	if err != nil {
		return nil, err
	}
	if changed == nil {
		changed = []string{}
	}
	return changed, nil
}
