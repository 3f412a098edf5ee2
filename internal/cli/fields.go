package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/avmeta/pkg/fields"
)

// fieldInfo is the structured form of one schema entry.
type fieldInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"`
	Property   string   `json:"property" yaml:"property"`
	Vocabulary []string `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`
	Length     int      `json:"length,omitempty" yaml:"length,omitempty"`
	Strict     bool     `json:"strict,omitempty" yaml:"strict,omitempty"`
}

func newFieldsCmd(flags *rootFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the fields of the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if kind != "" && !fields.IsValidKind(fields.Kind(kind)) {
				return userError("unknown kind %q", kind)
			}

			var infos []fieldInfo
			for _, name := range a.reg.Names() {
				d, _ := a.reg.Lookup(name)
				if kind != "" && d.Kind() != fields.Kind(kind) {
					continue
				}
				property := d.Namespace() + d.Path()
				if prefix, ok := a.reg.Prefix(d.Namespace()); ok {
					property = prefix + ":" + d.Path()
				}
				n, strict := d.Length()
				infos = append(infos, fieldInfo{
					Name:       name,
					Kind:       string(d.Kind()),
					Property:   property,
					Vocabulary: d.Vocabulary(),
					Length:     n,
					Strict:     strict,
				})
			}

			out := cmd.OutOrStdout()
			format := a.outputFormat(formatText)
			if format != formatText {
				return emit(out, format, infos)
			}
			t := &table{headers: []string{"NAME", "KIND", "PROPERTY", "LENGTH", "VOCABULARY"}}
			for _, f := range infos {
				length := ""
				if f.Length > 0 {
					length = strconv.Itoa(f.Length)
					if f.Strict {
						length += " (strict)"
					}
				}
				t.add(f.Name, f.Kind, f.Property, length, strings.Join(f.Vocabulary, ", "))
			}
			t.render(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only list fields of this kind")
	return cmd
}
