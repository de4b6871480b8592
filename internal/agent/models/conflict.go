package models

import "time"

// Resolution names the outcome of one reconciled job during a pull cycle.
type Resolution string

const (
	// ResolutionServerAccepted: the remote copy won; local edits (if any)
	// were discarded. Always the outcome when the remote copy is sealed.
	ResolutionServerAccepted Resolution = "server_accepted"
	// ResolutionLocalPreserved: local pending edits were newer and kept.
	ResolutionLocalPreserved Resolution = "local_preserved"
	// ResolutionMerged: remote base with local-only photos/signature
	// reattached, re-marked pending.
	ResolutionMerged Resolution = "merged"
)

// ConflictType classifies why two copies disagreed.
type ConflictType string

const (
	ConflictSealedRemote  ConflictType = "sealed_remote"
	ConflictBothEdited    ConflictType = "both_edited"
	ConflictRemoteDeleted ConflictType = "remote_deleted"
)

// ConflictEvent is one telemetry entry. Events live in a capped, append-only
// ring for offline analysis.
type ConflictEvent struct {
	Type        ConflictType
	ObjectType  string
	ObjectID    string
	Resolution  Resolution
	Timestamp   time.Time
	Diagnostics string
}
