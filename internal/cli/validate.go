package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// validation is the structured result of the validate command.
type validation struct {
	Field string `json:"field" yaml:"field"`
	Valid bool   `json:"valid" yaml:"valid"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <field> <value>",
		Short: "Check a value against a field without writing it",
		Long: `Validate parses value the way set does and runs the field's checks:
type, format, vocabulary and length. The normalized value is printed.

Example:
  avmeta validate Spectral.Band "optical;x-ray"
  avmeta validate Date 2009-05-27`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			name := args[0]
			d, err := a.reg.Lookup(name)
			if err != nil {
				return userError("%w", err)
			}

			res := validation{Field: name}
			v, err := d.ParseText(args[1])
			if err == nil {
				v, err = d.Validate(v)
			}
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Valid = true
				res.Value = displayValue(d, v)
			}

			out := cmd.OutOrStdout()
			if format := a.outputFormat(formatText); format != formatText {
				if err := emit(out, format, res); err != nil {
					return err
				}
			} else if res.Valid {
				color.New(color.FgGreen).Fprint(out, "valid")
				fmt.Fprintf(out, " %s = %s\n", name, textOf(res.Value))
			}
			if err != nil {
				return userError("%w", err)
			}
			return nil
		},
	}
}
