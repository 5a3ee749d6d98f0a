package media

import (
	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

// decodable lists the formats the resize step can read.
var decodable = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/tiff": {},
}

// sniffImage inspects the leading bytes; the client-supplied content type is
// never trusted.
func sniffImage(field string, data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := decodable[m.String()]; ok {
			return m.String(), nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "Only image files are allowed").
		WithDetails(map[string]string{field: "unsupported type " + detected.String()})
}
