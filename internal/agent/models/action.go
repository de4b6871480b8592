package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind discriminates the pending-action payload union.
type ActionKind string

const (
	ActionCreateJob         ActionKind = "create_job"
	ActionUpdateJob         ActionKind = "update_job"
	ActionUploadPhoto       ActionKind = "upload_photo"
	ActionUpsertClient      ActionKind = "upsert_client"
	ActionUpsertTechnician  ActionKind = "upsert_technician"
	ActionUpsertSafetyCheck ActionKind = "upsert_safety_check"
)

// ActionPayload is implemented by every payload type in the union.
type ActionPayload interface {
	Kind() ActionKind
}

// JobPayload carries a full job snapshot for create/update actions.
type JobPayload struct {
	Job Job `json:"job"`
}

func (JobPayload) Kind() ActionKind { return ActionCreateJob }

// PhotoPayload carries everything needed to upload a photo binary, plus the
// descriptive metadata preserved in an orphan record if the binary is lost.
type PhotoPayload struct {
	PhotoID      string    `json:"photo_id"`
	JobID        string    `json:"job_id"`
	JobTitle     string    `json:"job_title"`
	CapturePhase string    `json:"capture_phase"`
	CapturedAt   time.Time `json:"captured_at"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
}

func (PhotoPayload) Kind() ActionKind { return ActionUploadPhoto }

// EntityPayload carries an upsert for the simpler workspace entities.
type EntityPayload struct {
	Entity    string          `json:"entity"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (EntityPayload) Kind() ActionKind { return ActionUpsertClient }

// Action is one durable entry of the pending-action queue. RetryCount only
// ever increases on transient failures; a permanent failure escalates the
// action with the count untouched.
type Action struct {
	ID          string
	Kind        ActionKind
	WorkspaceID string
	Payload     ActionPayload
	CreatedAt   time.Time
	RetryCount  int
}

// FailedItem is an escalated action. It never expires on its own; it is
// removed only by a successful re-drive or an explicit clear.
type FailedItem struct {
	Action
	FailedAt time.Time
	Reason   string
}

// EncodePayload serializes an action payload for storage.
func EncodePayload(p ActionPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil action payload")
	}
	return json.Marshal(p)
}

// DecodePayload reconstructs the typed payload for a stored action. The
// switch is exhaustive over ActionKind; an unknown kind is an error the
// queue escalates as permanent rather than retrying forever.
func DecodePayload(kind ActionKind, raw []byte) (ActionPayload, error) {
	switch kind {
	case ActionCreateJob, ActionUpdateJob:
		var p JobPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case ActionUploadPhoto:
		var p PhotoPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case ActionUpsertClient, ActionUpsertTechnician, ActionUpsertSafetyCheck:
		var p EntityPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}
