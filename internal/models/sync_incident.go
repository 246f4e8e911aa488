package models

import (
	"time"
)

// IncidentKind names the dual-write hazard left behind by a failed operation.
type IncidentKind string

const (
	// IncidentCreateRollbackFailed: database create failed and the cluster resource could not be removed.
	IncidentCreateRollbackFailed IncidentKind = "create_rollback_failed"
	// IncidentUpdateStale: cluster resource updated, database row still holds the old addresses.
	IncidentUpdateStale IncidentKind = "update_stale"
	// IncidentDeleteOrphan: cluster resource deleted, database row left behind.
	IncidentDeleteOrphan IncidentKind = "delete_orphan"
)

// SyncIncident journals a cluster/database inconsistency until it is reconciled.
type SyncIncident struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	UUID         string       `json:"uuid" gorm:"uniqueIndex"`
	Kind         IncidentKind `json:"kind" gorm:"index"`
	Mode         AccessMode   `json:"mode"`
	PolicyName   string       `json:"policy_name" gorm:"index"`
	ResourceName string       `json:"resource_name"`
	ClusterUID   string       `json:"cluster_uid" gorm:"index"`
	ApplyRange   ApplyRange   `json:"apply_range"`
	Detail       string       `json:"detail" gorm:"type:text"`
	Attempts     int          `json:"attempts"`
	LastError    string       `json:"last_error" gorm:"type:text"`
	Resolved     bool         `json:"resolved" gorm:"index"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
