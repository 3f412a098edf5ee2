package types

// ArrayForm selects the array container used when appending items.
type ArrayForm int

const (
	// Bag is an unordered array.
	Bag ArrayForm = iota
	// Seq is an ordered array.
	Seq
)

// String returns the RDF container name for the form.
func (f ArrayForm) String() string {
	switch f {
	case Bag:
		return "Bag"
	case Seq:
		return "Seq"
	default:
		return "unknown"
	}
}

// DefaultLang is the language used for localized text when no specific
// language is requested.
const DefaultLang = "x-default"

// Packet is the store adapter that field descriptors read from and write to.
// Reads never fail: a missing property is reported through the boolean
// result. Writes return an error when the packet rejects the mutation, for
// example when a property already exists with a different shape.
type Packet interface {
	// GetProperty returns the simple value stored at (ns, path).
	GetProperty(ns, path string) (string, bool)

	// SetProperty stores a simple value at (ns, path).
	SetProperty(ns, path, value string) error

	// DeleteProperty removes the property at (ns, path) whatever its shape.
	// Deleting an absent property is not an error.
	DeleteProperty(ns, path string) error

	// CountArrayItems returns the number of items in the array at
	// (ns, path), or 0 when the property is absent or not an array.
	CountArrayItems(ns, path string) int

	// AppendArrayItem appends value to the array at (ns, path), creating
	// the array with the given form when it does not exist.
	AppendArrayItem(ns, path, value string, form ArrayForm) error

	// GetArrayItem returns the item at the 1-based index.
	GetArrayItem(ns, path string, index int) (string, bool)

	// GetLocalizedText returns the alternative best matching the
	// generic and specific languages.
	GetLocalizedText(ns, path, genericLang, specificLang string) (string, bool)

	// SetLocalizedText stores value as the alternative for the given
	// languages.
	SetLocalizedText(ns, path, genericLang, specificLang, value string) error
}

// ArrayReplacer is implemented by packets that can swap the content of an
// array in a single step. Descriptors prefer it over delete-then-append so
// a failed write does not leave a partially rebuilt array behind.
type ArrayReplacer interface {
	ReplaceArray(ns, path string, form ArrayForm, items []string) error
}
