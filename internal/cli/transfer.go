package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mantidproject/mantid-sub073/internal/memento"
	"github.com/mantidproject/mantid-sub073/internal/sqlite"
	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Export formats.
const (
	formatJSONL = "jsonl"
	formatYAML  = "yaml"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the committed table to a file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fmtName, err := resolveFormat(format, path)
			if err != nil {
				return err
			}
			return withSession(cmd, f, func(s *session) error {
				tbl := s.coll.Serialize()
				switch fmtName {
				case formatYAML:
					err = exportYAML(path, tbl)
				default:
					err = sqlite.ExportJSONL(path, tbl)
				}
				if err != nil {
					return sysError(fmt.Errorf("export %s: %w", path, err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", tbl.RowCount(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "jsonl or yaml (default: from the file extension, else jsonl)")
	return cmd
}

func newImportCmd(f *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the stored table with the rows in a file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fmtName, err := resolveFormat(format, path)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, f)
			if err != nil {
				return err
			}
			defer s.close()

			columns := s.coll.Schema().Columns()
			var tbl *table.Workspace
			switch fmtName {
			case formatYAML:
				tbl, err = importYAML(path, columns)
			default:
				tbl, err = sqlite.ImportJSONL(path, columns)
			}
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("import %s: %w", path, types.ErrNotFound)
				}
				return fmt.Errorf("import %s: %w", path, err)
			}
			coll, err := memento.NewCollection(tbl, nil)
			if err != nil {
				return err
			}
			if err := checkUniqueNames(coll); err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			if err := s.store.Save(cmd.Context(), tbl); err != nil {
				return sysError(fmt.Errorf("save snapshot: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows from %s\n", tbl.RowCount(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "jsonl or yaml (default: from the file extension, else jsonl)")
	return cmd
}

func resolveFormat(flag, path string) (string, error) {
	switch strings.ToLower(flag) {
	case formatJSONL, formatYAML:
		return strings.ToLower(flag), nil
	case "":
	default:
		return "", fmt.Errorf("%w: unknown format %q", errUsage, flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return formatJSONL, nil
}

func checkUniqueNames(coll *memento.Collection) error {
	names, err := coll.Names()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(names))
	for row, name := range names {
		if name == "" {
			return fmt.Errorf("row %d: %w", row, types.ErrInvalidName)
		}
		if seen[name] {
			return fmt.Errorf("row %d: %w: %q", row, types.ErrAlreadyRegistered, name)
		}
		seen[name] = true
	}
	return nil
}

// exportYAML writes tbl as a sequence of mappings in column order.
func exportYAML(path string, tbl types.Table) error {
	columns := tbl.Columns()
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for row := 0; row < tbl.RowCount(); row++ {
		rec := &yaml.Node{Kind: yaml.MappingNode}
		for col, c := range columns {
			v, err := tbl.Cell(row, col)
			if err != nil {
				return err
			}
			var val yaml.Node
			if err := val.Encode(v.Interface()); err != nil {
				return fmt.Errorf("encode %q: %w", c.Name, err)
			}
			rec.Content = append(rec.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.Name}, &val)
		}
		doc.Content = append(doc.Content, rec)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// importYAML reads an exportYAML file into a new table with columns.
func importYAML(path string, columns []types.Column) (*table.Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []map[string]yaml.Node
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSchema, err)
	}
	w, err := table.New(columns)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("record %d: %w: %d fields for %d columns", i+1, types.ErrInvalidSchema, len(rec), len(columns))
		}
		row := w.AppendRow()
		for col, c := range columns {
			node, ok := rec[c.Name]
			if !ok {
				return nil, fmt.Errorf("record %d: %w: missing field %q", i+1, types.ErrInvalidSchema, c.Name)
			}
			v, err := decodeYAMLValue(c.Kind, &node)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i+1, c.Name, err)
			}
			if err := w.SetCell(row, col, v); err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
		}
	}
	return w, nil
}

func decodeYAMLValue(k types.Kind, node *yaml.Node) (types.Value, error) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return types.Value{}, fmt.Errorf("%w: want a %s scalar", types.ErrTypeMismatch, k)
	}
	var (
		v   types.Value
		err error
	)
	switch k {
	case types.KindString:
		var s string
		err = node.Decode(&s)
		v = types.StringValue(s)
	case types.KindInt:
		var n int64
		err = node.Decode(&n)
		v = types.IntValue(n)
	case types.KindDouble:
		var x float64
		err = node.Decode(&x)
		v = types.DoubleValue(x)
	case types.KindBool:
		var b bool
		err = node.Decode(&b)
		v = types.BoolValue(b)
	default:
		return types.Value{}, fmt.Errorf("%w: %s", types.ErrInvalidKind, k)
	}
	if err != nil {
		return types.Value{}, fmt.Errorf("%w: %v", types.ErrTypeMismatch, err)
	}
	return v, nil
}
