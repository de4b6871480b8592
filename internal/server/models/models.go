// Package models defines the server-side persistence types.
package models

import "time"

// Workspace is a tenant. Devices authenticate against its shared secret.
type Workspace struct {
	ID         string
	Name       string
	SecretHash string
}

// RefreshToken is a stored refresh token row.
type RefreshToken struct {
	DeviceID    string
	WorkspaceID string
	Expires     time.Time
}
