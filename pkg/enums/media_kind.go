package enums

import "slices"

// MediaKind labels what an uploaded image is attached to.
type MediaKind string

const (
	MediaKindProduct MediaKind = "product"
	MediaKindAvatar  MediaKind = "avatar"
)

var validMediaKinds = []MediaKind{
	MediaKindProduct,
	MediaKindAvatar,
}

func (m MediaKind) String() string {
	return string(m)
}

// IsValid reports whether the kind is known.
func (m MediaKind) IsValid() bool {
	return slices.Contains(validMediaKinds, m)
}

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	return parse("media kind", validMediaKinds, value)
}
