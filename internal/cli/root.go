// Package cli implements the avmeta command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	format    string
	noColor   bool
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by a command to a process exit code.
// Flag and argument errors reported by cobra are user errors.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitUserError
}

// NewRootCmd creates the top-level "avmeta" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "avmeta",
		Short: "Read, write and validate Astronomy Visualization Metadata",
		Long: "avmeta reads and writes AVM fields in XMP sidecar and JSON packet files,\n" +
			"validates values against the AVM 1.1 schema and keeps packets in a local catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.noColor {
				color.NoColor = true
			}
			switch flags.format {
			case "", formatJSON, formatYAML, formatText:
				return nil
			}
			return userError("unknown format %q (valid: %s, %s, %s)", flags.format, formatJSON, formatYAML, formatText)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (env AVMETA_CONFIG_DIR)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "catalog data directory (env AVMETA_DATA_DIR)")
	pf.StringVar(&flags.format, "format", "", "output format: json, yaml or text")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(flags),
		newFieldsCmd(flags),
		newGetCmd(flags),
		newSetCmd(flags),
		newDeleteCmd(flags),
		newValidateCmd(flags),
		newCatalogCmd(flags),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "avmeta:", err)
	}
	os.Exit(ExitCode(err))
}
