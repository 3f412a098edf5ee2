// Output helpers shared by the avmeta commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/avmeta/pkg/fields"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

// outputFormat returns the format to use, falling back to def when the
// flag is unset.
func (a *app) outputFormat(def string) string {
	if a.flags.format == "" {
		return def
	}
	return a.flags.format
}

// emit writes v as JSON or YAML. Text output is only offered by commands
// that render tables; for everything else it falls back to JSON.
func emit(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return sysError("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return sysError("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}

// display converts field values into output-friendly form. Dates print as
// YYYY-MM-DD and datetimes as RFC 3339.
func display(reg *schema.Registry, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		d, err := reg.Lookup(name)
		if err != nil {
			out[name] = v
			continue
		}
		out[name] = displayValue(d, v)
	}
	return out
}

func displayValue(d *fields.Descriptor, v any) any {
	layout := time.RFC3339Nano
	if d.Kind() == fields.KindDate {
		layout = time.DateOnly
	}
	switch x := v.(type) {
	case time.Time:
		return x.Format(layout)
	case []time.Time:
		out := make([]string, len(x))
		for i, t := range x {
			out[i] = t.Format(layout)
		}
		return out
	}
	return v
}

// table renders aligned columns with a coloured header.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	for i, h := range t.headers {
		header.Fprint(w, pad(h, widths[i], i == len(t.headers)-1))
	}
	fmt.Fprintln(w)
	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(w, pad(cell, widths[i], i == len(row)-1))
		}
		fmt.Fprintln(w)
	}
}

func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	return s + strings.Repeat(" ", width-len(s)+2)
}
