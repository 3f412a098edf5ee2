package fields

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind names the semantic type of a field.
type Kind string

// Field kinds.
const (
	KindString      Kind = "string"
	KindURL         Kind = "url"
	KindEmail       Kind = "email"
	KindLocalized   Kind = "localized"
	KindFloat       Kind = "float"
	KindDate        Kind = "date"
	KindStringCV    Kind = "string-cv"
	KindBag         Kind = "bag"
	KindSeq         Kind = "seq"
	KindSeqCV       Kind = "seq-cv"
	KindFloatSeq    Kind = "float-seq"
	KindDateTimeSeq Kind = "datetime-seq"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindString, KindURL, KindEmail, KindLocalized, KindFloat, KindDate,
	KindStringCV, KindBag, KindSeq, KindSeqCV, KindFloatSeq, KindDateTimeSeq,
}

// IsValidKind reports whether k is a recognized kind.
func IsValidKind(k Kind) bool {
	_, ok := strategies[k]
	return ok
}

// IsList reports whether values of the kind are sequences.
func (k Kind) IsList() bool {
	s, ok := strategies[k]
	return ok && s.shape.isArray()
}

// Controlled reports whether the kind checks a controlled vocabulary.
func (k Kind) Controlled() bool {
	return k == KindStringCV || k == KindSeqCV
}

// Format is the normalization applied to a candidate value before the
// vocabulary membership check.
type Format string

// Vocabulary formats.
const (
	FormatNone       Format = ""
	FormatCapitalize Format = "capitalize"
	FormatUpper      Format = "upper"
)

// IsValidFormat reports whether f is a recognized format.
func IsValidFormat(f Format) bool {
	switch f {
	case FormatNone, FormatCapitalize, FormatUpper:
		return true
	}
	return false
}

// Apply formats s. Capitalize upper-cases the first rune and lower-cases
// the rest; "x-ray" becomes "X-ray".
func (f Format) Apply(s string) string {
	switch f {
	case FormatCapitalize:
		if s == "" {
			return s
		}
		r, size := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
	case FormatUpper:
		return strings.ToUpper(s)
	default:
		return s
	}
}
