package rooms

import (
	"testing"

	"github.com/google/uuid"
)

func TestFolderName(t *testing.T) {
	cases := map[string]string{
		"Kitchen":           "kitchen",
		"Master Bedroom #1": "master-bedroom--1",
		"guest_room-2":      "guest_room-2",
		"Salle à manger":    "salle---manger",
		"":                  "",
	}
	for in, want := range cases {
		if got := FolderName(in); got != want {
			t.Fatalf("FolderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBlobPathRoundTrip(t *testing.T) {
	id := uuid.MustParse("6f1c2a7e-3b9d-4c1a-9e2f-0a1b2c3d4e5f")
	path := BlobPath(id, "Living Room", "abc.png")
	if path != "6f1c2a7e-3b9d-4c1a-9e2f-0a1b2c3d4e5f/living-room/abc.png" {
		t.Fatalf("unexpected path %q", path)
	}
	gotID, key, ok := ParseBlobPath(path)
	if !ok || gotID != id || key != "abc.png" {
		t.Fatalf("parse failed: %v %q %v", gotID, key, ok)
	}
	for _, bad := range []string{"", "nope/kitchen/a.png", id.String() + "/a.png", id.String() + "/kitchen/"} {
		if _, _, ok := ParseBlobPath(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"photo.PNG":      "png",
		"photo":          "jpg",
		"archive.tar.gz": "gz",
		"weird.p$g":      "jpg",
		"long.extension": "jpg",
	}
	for in, want := range cases {
		if got := extensionFor(in); got != want {
			t.Fatalf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}
