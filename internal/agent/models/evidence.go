package models

import (
	"encoding/json"
	"time"
)

// MediaBlob holds captured photo bytes until they are uploaded and the
// remote URL substituted into the owning job, or until the photo is proven
// orphaned.
type MediaBlob struct {
	ID        string
	JobID     string
	Data      []byte
	CreatedAt time.Time
}

// OrphanRecord preserves the descriptive metadata of a photo whose binary
// was lost or whose upload permanently failed. It is kept indefinitely so
// the audit trail survives even when the evidence bytes do not.
type OrphanRecord struct {
	PhotoID          string
	JobID            string
	JobTitle         string
	CaptureType      string
	CapturedAt       time.Time
	Latitude         float64
	Longitude        float64
	Reason           string
	OrphanedAt       time.Time
	RecoveryAttempts int
}

// FormDraft is an autosaved, unsubmitted form. Drafts expire; Get treats an
// expired draft as absent and removes it.
type FormDraft struct {
	ID      string
	JobID   string
	Data    json.RawMessage
	SavedAt time.Time
}
