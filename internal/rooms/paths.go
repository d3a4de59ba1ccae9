package rooms

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeFolderChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FolderName turns a room name into its blob folder segment.
func FolderName(roomName string) string {
	return strings.ToLower(unsafeFolderChars.ReplaceAllString(roomName, "-"))
}

// BlobPath is the object path of an image: {propertyId}/{folder}/{storageKey}.
func BlobPath(propertyID uuid.UUID, roomName, storageKey string) string {
	return propertyID.String() + "/" + FolderName(roomName) + "/" + storageKey
}

// ParseBlobPath splits an object path into the property id and storage key.
func ParseBlobPath(object string) (uuid.UUID, string, bool) {
	parts := strings.Split(strings.TrimPrefix(object, "/"), "/")
	if len(parts) != 3 || parts[2] == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, parts[2], true
}

// extensionFor picks the object extension from the uploaded file name.
func extensionFor(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || unsafeFolderChars.MatchString(ext) || len(ext) > 5 {
		return "jpg"
	}
	return ext
}
