package rooms

import (
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// sniffImageType detects the content type from the bytes and reports whether it is an
// accepted image format. The client-declared type is never trusted.
func sniffImageType(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := allowedImageTypes[m.String()]; ok {
			return m.String(), true
		}
	}
	return detected.String(), false
}

func allowedImageDescription() string {
	list := make([]string, 0, len(allowedImageTypes))
	for t := range allowedImageTypes {
		list = append(list, strings.TrimPrefix(t, "image/"))
	}
	sort.Strings(list)
	return strings.Join(list, ", ")
}
