package enums

import "testing"

func TestParseRentalTypeIsCaseInsensitive(t *testing.T) {
	got, err := ParseRentalType(" MONTHLY ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != RentalTypeMonthly {
		t.Fatalf("expected monthly, got %q", got)
	}
	if _, err := ParseRentalType("weekly"); err == nil {
		t.Fatalf("expected weekly to be rejected")
	}
}

func TestPropertyTypeValidity(t *testing.T) {
	if !PropertyTypeStudio.IsValid() {
		t.Fatalf("studio should be valid")
	}
	if PropertyType("castle").IsValid() {
		t.Fatalf("castle should be invalid")
	}
	if _, err := ParsePropertyType("Villa"); err != nil {
		t.Fatalf("expected villa to parse: %v", err)
	}
}

func TestParseSyncState(t *testing.T) {
	for _, raw := range []string{"pending", "synced", "sync_failed"} {
		state, err := ParseSyncState(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if state.String() != raw {
			t.Fatalf("round trip mismatch for %q", raw)
		}
	}
	if _, err := ParseSyncState("SYNCED"); err == nil {
		t.Fatalf("sync state parsing is exact")
	}
}
