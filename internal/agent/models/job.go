// Package models defines the on-device records the sync engine operates on:
// jobs, queued actions, media blobs, orphaned-evidence metadata, form drafts
// and conflict events.
package models

import (
	"encoding/json"
	"time"

	"github.com/fieldsync/fieldsync/internal/rpc"
)

// SyncStatus tracks where a local record sits in the sync lifecycle.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// PhotoRef is a photo attached to a job. URL stays empty until the binary
// has been uploaded; an empty URL means the bytes still live in the local
// media store.
type PhotoRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Uploaded reports whether the photo already has a remote URL.
func (p PhotoRef) Uploaded() bool { return p.URL != "" }

// Job is the local copy of a job record. Once SealedAt is set the record is
// contractually immutable: no sync path may overwrite it with an older
// unsealed version, and no pull cycle may delete it.
type Job struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspace_id"`
	Title           string          `json:"title"`
	Status          string          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	Location        string          `json:"location,omitempty"`
	TechnicianID    string          `json:"technician_id,omitempty"`
	Photos          []PhotoRef      `json:"photos,omitempty"`
	SignatureID     string          `json:"signature_id,omitempty"`
	SafetyChecklist json.RawMessage `json:"safety_checklist,omitempty"`
	SyncStatus      SyncStatus      `json:"sync_status"`
	UpdatedAt       time.Time       `json:"updated_at"`
	SealedAt        *time.Time      `json:"sealed_at,omitempty"`
	EvidenceHash    string          `json:"evidence_hash,omitempty"`
}

// Sealed reports whether the evidence bundle has been finalized.
func (j *Job) Sealed() bool { return j.SealedAt != nil && !j.SealedAt.IsZero() }

// HasPendingChanges reports whether the local copy carries edits not yet
// acknowledged by the remote store.
func (j *Job) HasPendingChanges() bool {
	return j.SyncStatus == SyncStatusPending || j.SyncStatus == SyncStatusFailed
}

// NewerThan compares record recency by UpdatedAt.
//
// Precedence intentionally uses device wall clocks, matching the remote
// store's semantics; there is no skew compensation across devices. Every
// precedence decision funnels through here so a per-record version counter
// could replace the comparison in one place.
func (j *Job) NewerThan(other *Job) bool {
	return j.UpdatedAt.After(other.UpdatedAt)
}

// PhotoIDSet returns the set of photo ids attached to the job.
func (j *Job) PhotoIDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(j.Photos))
	for _, p := range j.Photos {
		set[p.ID] = struct{}{}
	}
	return set
}

// Row converts the local job to its wire form.
func (j *Job) Row() rpc.JobRow {
	row := rpc.JobRow{
		ID:              j.ID,
		WorkspaceID:     j.WorkspaceID,
		Title:           j.Title,
		Status:          j.Status,
		Notes:           j.Notes,
		Location:        j.Location,
		TechnicianID:    j.TechnicianID,
		SignatureID:     j.SignatureID,
		SafetyChecklist: j.SafetyChecklist,
		UpdatedAtMs:     j.UpdatedAt.UnixMilli(),
		EvidenceHash:    j.EvidenceHash,
	}
	for _, p := range j.Photos {
		row.Photos = append(row.Photos, rpc.PhotoRef{ID: p.ID, URL: p.URL})
	}
	if j.Sealed() {
		row.SealedAtMs = j.SealedAt.UnixMilli()
	}
	return row
}

// JobFromRow converts a wire row into a local job. The result is marked
// synced; callers flip the status when they re-attach local-only state.
func JobFromRow(row rpc.JobRow) *Job {
	j := &Job{
		ID:              row.ID,
		WorkspaceID:     row.WorkspaceID,
		Title:           row.Title,
		Status:          row.Status,
		Notes:           row.Notes,
		Location:        row.Location,
		TechnicianID:    row.TechnicianID,
		SignatureID:     row.SignatureID,
		SafetyChecklist: row.SafetyChecklist,
		SyncStatus:      SyncStatusSynced,
		UpdatedAt:       time.UnixMilli(row.UpdatedAtMs).UTC(),
		EvidenceHash:    row.EvidenceHash,
	}
	for _, p := range row.Photos {
		j.Photos = append(j.Photos, PhotoRef{ID: p.ID, URL: p.URL})
	}
	if row.SealedAtMs != 0 {
		t := time.UnixMilli(row.SealedAtMs).UTC()
		j.SealedAt = &t
	}
	return j
}
