package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/memento"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

func newRegisterCmd(f *rootFlags) *cobra.Command {
	var (
		run        int64
		instrument string
		lattice    string
	)
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a workspace as a new table row",
		Example: `  memento register MAR11001 --run 11001 --instrument MARI \
    --lattice 5.431,5.431,5.431,90,90,90`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseLattice(lattice)
			if err != nil {
				return err
			}
			ws := types.Workspace{Name: args[0], RunNumber: run, Instrument: instrument, Lattice: l}
			return withSession(cmd, f, func(s *session) error {
				var row int
				err := s.mutate(cmd.Context(), func(c *memento.Collection) error {
					var err error
					row, err = c.RegisterWorkspace(ws)
					return err
				})
				if err != nil {
					return err
				}
				if f.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"row":    row,
						"name":   ws.Name,
						"status": ws.Lattice.Status(),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s at row %d (%s)\n", ws.Name, row, ws.Lattice.Status())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&run, "run", 0, "run number")
	cmd.Flags().StringVar(&instrument, "instrument", "", "instrument name")
	cmd.Flags().StringVar(&lattice, "lattice", "", "unit cell as a,b,c,alpha,beta,gamma")
	return cmd
}

// parseLattice reads "a,b,c,alpha,beta,gamma". An empty string is the zero
// lattice.
func parseLattice(text string) (types.Lattice, error) {
	if text == "" {
		return types.Lattice{}, nil
	}
	parts := strings.Split(text, ",")
	if len(parts) != 6 {
		return types.Lattice{}, fmt.Errorf("%w: want 6 comma-separated values, got %d", types.ErrInvalidLattice, len(parts))
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !types.Finite(v) {
			return types.Lattice{}, fmt.Errorf("%w: %q is not a finite number", types.ErrInvalidLattice, p)
		}
		vals[i] = v
	}
	return types.Lattice{A: vals[0], B: vals[1], C: vals[2], Alpha: vals[3], Beta: vals[4], Gamma: vals[5]}, nil
}
