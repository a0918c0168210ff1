package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workspaces with their committed values",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				tbl := s.coll.Serialize()
				if f.jsonMode {
					records, err := rowRecords(tbl)
					if err != nil {
						return sysError(err)
					}
					return printJSON(cmd.OutOrStdout(), records)
				}
				if tbl.RowCount() == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no workspaces registered")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				header := []string{"ROW"}
				for _, c := range tbl.Columns() {
					header = append(header, strings.ToUpper(c.Name))
				}
				fmt.Fprintln(w, strings.Join(header, "\t"))
				for row := 0; row < tbl.RowCount(); row++ {
					cells := []string{fmt.Sprint(row)}
					for col := 0; col < tbl.ColumnCount(); col++ {
						v, err := tbl.Cell(row, col)
						if err != nil {
							return sysError(err)
						}
						cells = append(cells, v.String())
					}
					fmt.Fprintln(w, strings.Join(cells, "\t"))
				}
				return w.Flush()
			})
		},
	}
}
