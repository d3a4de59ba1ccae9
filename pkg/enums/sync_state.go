package enums

import "fmt"

// SyncState tracks where a property sits in the ledger listing saga.
type SyncState string

const (
	// SyncStatePending means the row exists locally but the ledger has not confirmed it.
	SyncStatePending SyncState = "pending"
	// SyncStateSynced means the mirrored fields match the last successful ledger call.
	SyncStateSynced SyncState = "synced"
	// SyncStateFailed marks drift detected by reconciliation.
	SyncStateFailed SyncState = "sync_failed"
)

var validSyncStates = []SyncState{
	SyncStatePending,
	SyncStateSynced,
	SyncStateFailed,
}

func (s SyncState) String() string {
	return string(s)
}

func (s SyncState) IsValid() bool {
	for _, candidate := range validSyncStates {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSyncState(value string) (SyncState, error) {
	for _, candidate := range validSyncStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync state %q", value)
}
