package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/memento"
)

// itemView is the JSON form of one memento item.
type itemView struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Value    any    `json:"value"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

func newShowCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <row|name>",
		Short: "Show the memento items of one workspace",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				return s.edit(cmd.Context(), args[0], func(m *memento.Memento) (bool, error) {
					return false, showItems(cmd, f, m)
				})
			})
		},
	}
}

func showItems(cmd *cobra.Command, f *rootFlags, m *memento.Memento) error {
	items := m.Items()
	if f.jsonMode {
		views := make([]itemView, len(items))
		for i, it := range items {
			views[i] = itemView{
				Name:     it.Name(),
				Kind:     it.Kind().String(),
				Value:    it.Value().Interface(),
				ReadOnly: it.ReadOnly(),
			}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"row": m.Row(), "items": views})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Row:   %d\nLock:  %s\n\n", m.Row(), m.Key())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tKIND\tVALUE")
	for _, it := range items {
		name := it.Name()
		if it.ReadOnly() {
			name += " (read-only)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, it.Kind(), it.Value())
	}
	return w.Flush()
}
