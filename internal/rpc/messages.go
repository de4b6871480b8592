package rpc

import "encoding/json"

// PhotoRef is a photo attachment on a job row. URL is empty until the
// binary has been uploaded and the blob store URL substituted in.
type PhotoRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// JobRow is the wire form of a job record. Timestamps are Unix
// milliseconds; SealedAtMs of zero means the job is not sealed.
type JobRow struct {
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
	UpdatedAtMs     int64           `json:"updated_at_ms"`
	SealedAtMs      int64           `json:"sealed_at_ms,omitempty"`
	EvidenceHash    string          `json:"evidence_hash,omitempty"`
}

// EntityRow is the wire form of the simpler workspace entities (clients,
// technicians, safety checks) that need no merge logic beyond upsert-by-id.
type EntityRow struct {
	Entity      string          `json:"entity"`
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Payload     json.RawMessage `json:"payload"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

type LoginRequest struct {
	DeviceID    string `json:"device_id"`
	WorkspaceID string `json:"workspace_id"`
	Secret      string `json:"secret"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type UpsertJobRequest struct {
	Job JobRow `json:"job"`
}

type UpsertJobResponse struct {
	Job JobRow `json:"job"`
}

type UpsertEntityRequest struct {
	Row EntityRow `json:"row"`
}

type UpsertEntityResponse struct{}

type DeleteEntityRequest struct {
	Entity      string `json:"entity"`
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
}

type DeleteEntityResponse struct{}

type PullJobsRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type PullJobsResponse struct {
	Jobs []JobRow `json:"jobs"`
}

type PresignPutRequest struct {
	JobID   string `json:"job_id"`
	PhotoID string `json:"photo_id"`
}

type PresignPutResponse struct {
	// UploadURL accepts a single HTTP PUT of the binary.
	UploadURL string `json:"upload_url"`
	// PublicURL is the stable URL the photo will be served from once
	// uploaded; it is what gets written back into Job.Photos[].URL.
	PublicURL string `json:"public_url"`
	Key       string `json:"key"`
}

type PresignGetRequest struct {
	Key string `json:"key"`
}

type PresignGetResponse struct {
	URL string `json:"url"`
}
