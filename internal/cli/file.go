package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/avmeta/pkg/avmfile"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <file> [field...]",
		Short: "Print the AVM fields stored in a file",
		Long: `Get reads an XMP sidecar (.xmp) or JSON packet (.json) and prints its
AVM fields. With field names, only those fields are printed; a requested
field without a value prints as null.

Example:
  avmeta get image.xmp
  avmeta get image.xmp Title Spectral.Band`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			path := args[0]
			values, err := avmfile.FromFile(path, a.reg, a.metaOptions()...)
			if err != nil {
				return fileError("read", path, err)
			}
			if names := args[1:]; len(names) > 0 {
				picked := make(map[string]any, len(names))
				for _, name := range names {
					if _, err := a.reg.Lookup(name); err != nil {
						return userError("%w", err)
					}
					picked[name] = values[name]
				}
				values = picked
			}
			return emitValues(cmd.OutOrStdout(), a.outputFormat(formatJSON), display(a.reg, values))
		},
	}
}

func newSetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file> <field=value>...",
		Short: "Set AVM fields in a file",
		Long: `Set validates every assignment, then writes them to the file, creating
it when missing. Fields not named keep their values. List values are
separated by ";". An empty value deletes the field.

Example:
  avmeta set image.xmp Title="Sample Title" "Spectral.Band=Optical;Infrared"
  avmeta set image.json Date=2009-05-27 Distance=3000`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			values := make(map[string]any, len(args)-1)
			for _, arg := range args[1:] {
				name, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return userError("expected field=value, got %q", arg)
				}
				d, err := a.reg.Lookup(name)
				if err != nil {
					return userError("%w", err)
				}
				if strings.TrimSpace(raw) == "" {
					values[name] = nil
					continue
				}
				v, err := d.ParseText(raw)
				if err != nil {
					return userError("%w", err)
				}
				if _, err := d.Validate(v); err != nil {
					return userError("%w", err)
				}
				values[name] = v
			}
			return a.writeFile(cmd.OutOrStdout(), args[0], values)
		},
	}
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file> <field>...",
		Short: "Remove AVM fields from a file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fileError("read", path, err)
			}
			values := make(map[string]any, len(args)-1)
			for _, name := range args[1:] {
				if _, err := a.reg.Lookup(name); err != nil {
					return userError("%w", err)
				}
				values[name] = nil
			}
			return a.writeFile(cmd.OutOrStdout(), path, values)
		},
	}
}

// writeFile applies values to path and prints the resulting fields.
func (a *app) writeFile(w io.Writer, path string, values map[string]any) error {
	applied, err := avmfile.ToFile(path, a.reg, values, a.metaOptions()...)
	if err != nil {
		return fileError("write", path, err)
	}
	if len(applied) != len(values) {
		var skipped []string
		for _, name := range slices.Sorted(maps.Keys(values)) {
			if !slices.Contains(applied, name) {
				skipped = append(skipped, name)
			}
		}
		return userError("fields not written: %s", strings.Join(skipped, ", "))
	}

	result, err := avmfile.FromFile(path, a.reg, a.metaOptions()...)
	if err != nil {
		return fileError("read", path, err)
	}
	return emitValues(w, a.outputFormat(formatJSON), display(a.reg, result))
}

// fileError classifies file failures: missing files, unsupported
// extensions and malformed content are user errors; other I/O failures
// are system errors.
func fileError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, types.ErrUnsupportedFormat):
		return userError("%s %s: %w", op, path, err)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return sysError("%s %s: %w", op, path, err)
	}
	return userError("%s %s: %w", op, path, err)
}

// emitValues prints a field mapping. Text output is one "name = value"
// line per field in name order.
func emitValues(w io.Writer, format string, values map[string]any) error {
	if format != formatText {
		return emit(w, format, values)
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(w, "%s = %s\n", name, textOf(values[name]))
	}
	return nil
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, "; ")
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = fmt.Sprint(f)
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}
