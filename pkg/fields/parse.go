package fields

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// ListSeparator splits list items in text input.
const ListSeparator = ";"

// ParseText converts command-line text into a value Write accepts. List
// kinds split s on ListSeparator and drop empty items; numbers, dates and
// datetimes are decoded the same way stored text is. The result is not
// validated.
func (d *Descriptor) ParseText(s string) (any, error) {
	s = strings.TrimSpace(s)
	if !d.strategy.shape.isArray() {
		return d.parseItem(s, "")
	}
	var out []any
	for i, part := range strings.Split(s, ListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := d.parseItem(part, fmt.Sprintf("item %d: ", i+1))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (d *Descriptor) parseItem(s, prefix string) (any, error) {
	v, err := d.strategy.decode(s)
	if err != nil {
		return nil, &types.FieldError{Field: d.label(), Err: types.ErrTypeMismatch, Reason: prefix + err.Error()}
	}
	return v, nil
}
