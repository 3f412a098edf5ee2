package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/avmeta/pkg/types"
)

// shape is the packet representation a strategy writes.
type shape int

const (
	shapeScalar shape = iota
	shapeLocalized
	shapeBag
	shapeSeq
)

func (s shape) isArray() bool {
	return s == shapeBag || s == shapeSeq
}

// strategy is the per-kind capability set plugged into a Descriptor.
// element validates and normalizes one candidate value (the whole value for
// scalar shapes, each item for arrays) and returns its stored text.
// decode turns stored text back into the element value. collect builds the
// typed list value for array shapes.
type strategy struct {
	shape   shape
	element func(d *Descriptor, v any) (any, string, error)
	decode  func(text string) (any, error)
	collect func(vals []any) any
}

var strategies = map[Kind]strategy{
	KindString:      {shape: shapeScalar, element: textElement, decode: decodeText},
	KindURL:         {shape: shapeScalar, element: urlElement, decode: decodeText},
	KindEmail:       {shape: shapeScalar, element: emailElement, decode: decodeText},
	KindLocalized:   {shape: shapeLocalized, element: textElement, decode: decodeText},
	KindFloat:       {shape: shapeScalar, element: floatElement, decode: decodeFloat},
	KindDate:        {shape: shapeScalar, element: dateElement, decode: decodeDate},
	KindStringCV:    {shape: shapeScalar, element: vocabularyElement, decode: decodeText},
	KindBag:         {shape: shapeBag, element: textElement, decode: decodeText, collect: collectStrings},
	KindSeq:         {shape: shapeSeq, element: textElement, decode: decodeText, collect: collectStrings},
	KindSeqCV:       {shape: shapeSeq, element: vocabularyElement, decode: decodeText, collect: collectStrings},
	KindFloatSeq:    {shape: shapeSeq, element: floatElement, decode: decodeFloat, collect: collectFloats},
	KindDateTimeSeq: {shape: shapeSeq, element: dateTimeElement, decode: decodeDateTime, collect: collectTimes},
}

var (
	urlPattern = regexp.MustCompile(`(?i)^https?://` +
		`(?:(?:[A-Z0-9-]+\.)+[A-Z]{2,63}|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`(?::\d+)?` +
		`(?:/?|/\S+)$`)

	emailAtom    = "[-!#$%&'*+/=?^_`{}|~0-9A-Z]+"
	emailPattern = regexp.MustCompile(`(?i)^(?:` + emailAtom + `(?:\.` + emailAtom + `)*` +
		`|"(?:[\x01-\x08\x0b\x0c\x0e-\x1f!#-\[\]-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*")` +
		`@(?:[A-Z0-9-]+\.)+[A-Z]{2,63}$`)
)

// invalid is a validation failure before the field name is attached.
type invalid struct {
	kind   error
	reason string
}

func (e *invalid) Error() string { return e.reason }

func mismatch(format string, args ...any) error {
	return &invalid{kind: types.ErrTypeMismatch, reason: fmt.Sprintf(format, args...)}
}

func malformed(format string, args ...any) error {
	return &invalid{kind: types.ErrFormatViolation, reason: fmt.Sprintf(format, args...)}
}

func textElement(_ *Descriptor, v any) (any, string, error) {
	s, ok := toText(v)
	if !ok {
		return nil, "", mismatch("expected text, got %T", v)
	}
	return s, s, nil
}

func urlElement(d *Descriptor, v any) (any, string, error) {
	s, ok := toText(v)
	if !ok {
		return nil, "", mismatch("expected text, got %T", v)
	}
	if s != "" && !strings.Contains(s, "://") {
		s = "http://" + s
	}
	if !urlPattern.MatchString(s) {
		return nil, "", malformed("%q is not a URL", s)
	}
	return s, s, nil
}

func emailElement(_ *Descriptor, v any) (any, string, error) {
	s, ok := toText(v)
	if !ok {
		return nil, "", mismatch("expected text, got %T", v)
	}
	if !emailPattern.MatchString(s) {
		return nil, "", malformed("%q is not an email address", s)
	}
	return s, s, nil
}

func vocabularyElement(d *Descriptor, v any) (any, string, error) {
	s, ok := toText(v)
	if !ok {
		return nil, "", mismatch("expected text, got %T", v)
	}
	s = d.Format(s)
	if err := d.checkVocabulary(s); err != nil {
		return nil, "", err
	}
	return s, s, nil
}

func floatElement(_ *Descriptor, v any) (any, string, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, "", mismatch("%v", err)
	}
	return f, formatFloat(f), nil
}

func dateElement(_ *Descriptor, v any) (any, string, error) {
	t, ok := toTime(v)
	if !ok {
		return nil, "", mismatch("expected a date, got %T", v)
	}
	y, m, day := t.Date()
	date := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return date, date.Format(time.DateOnly), nil
}

func dateTimeElement(_ *Descriptor, v any) (any, string, error) {
	t, ok := toTime(v)
	if !ok {
		return nil, "", mismatch("expected a date or time, got %T", v)
	}
	return t, t.Format(time.RFC3339Nano), nil
}

func decodeText(text string) (any, error) {
	return text, nil
}

func decodeFloat(text string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", text)
	}
	return f, nil
}

func decodeDate(text string) (any, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%q is not a date", text)
	}
	return t, nil
}

func decodeDateTime(text string) (any, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, text)
	if err != nil {
		return nil, fmt.Errorf("%q is not a date or time", text)
	}
	return t, nil
}

func collectStrings(vals []any) any {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.(string)
	}
	return out
}

func collectFloats(vals []any) any {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v.(float64)
	}
	return out
}

func collectTimes(vals []any) any {
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		out[i] = v.(time.Time)
	}
	return out
}
