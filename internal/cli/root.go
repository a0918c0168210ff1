// Package cli implements the memento command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootFlags holds global flag values shared by all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// NewRootCmd creates the top-level "memento" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "memento",
		Short: "Stage and commit workspace metadata edits",
		Long: "memento keeps one table row per registered workspace and lets you stage\n" +
			"edits to a row, then commit or discard them as a whole.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.configDir, "config-dir", "", "configuration directory (default: $MEMENTO_CONFIG_DIR or the user config dir)")
	pf.StringVar(&f.dataDir, "data-dir", "", "data directory (default: .memento-db)")
	pf.BoolVar(&f.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(f),
		newRegisterCmd(f),
		newListCmd(f),
		newShowCmd(f),
		newSetCmd(f),
		newUnregisterCmd(f),
		newExportCmd(f),
		newImportCmd(f),
	)
	return root
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "memento:", err)
		os.Exit(ExitCode(err))
	}
}
