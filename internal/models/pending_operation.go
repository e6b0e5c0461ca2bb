// Package models provides data model definitions for the AgriSync client core.
package models

import "encoding/json"

// ResourceType identifies which entity kind a queued mutation targets.
type ResourceType string

const (
	ResourceOrganisation ResourceType = "organisation"
	ResourceSection      ResourceType = "section"
	ResourceVillage      ResourceType = "village"
	ResourceProducteur   ResourceType = "producteur"
	ResourceParcelle     ResourceType = "parcelle"
	ResourceOperation    ResourceType = "operation"
	ResourceAgent        ResourceType = "agent"
)

// Action identifies the kind of mutation a queued operation carries.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// syncableResources is the closed set of resource types the sync engine
// can dispatch. Adding a resource means adding it here and nowhere else.
var syncableResources = map[ResourceType]bool{
	ResourceOrganisation: true,
	ResourceSection:      true,
	ResourceVillage:      true,
	ResourceProducteur:   true,
	ResourceParcelle:     true,
	ResourceOperation:    true,
	ResourceAgent:        true,
}

// IsValid reports whether the resource type is a known syncable resource.
func (r ResourceType) IsValid() bool {
	return syncableResources[r]
}

// IsValid reports whether the action is one of create, update, delete.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// PendingOperation represents one deferred mutation awaiting delivery to the
// remote API. It is created when a save cannot reach the server, mutated only
// by the sync engine (Synced, LastError), and removed either by per-item
// deletion or by cleanup of synced items.
type PendingOperation struct {
	ID           string          `json:"id"`
	ResourceType ResourceType    `json:"resource_type"`
	Action       Action          `json:"action"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    int64           `json:"created_at"` // epoch milliseconds
	Synced       bool            `json:"synced"`
	LastError    string          `json:"last_error,omitempty"`
}

// PayloadID extracts the "id" field from the payload, used by update and
// delete dispatch to build the request path. Returns "" if absent.
func (op *PendingOperation) PayloadID() string {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(op.Payload, &body); err != nil {
		return ""
	}
	return body.ID
}

// OperationPatch is a field-level patch applied to a stored operation.
// Nil fields are left untouched.
type OperationPatch struct {
	Synced    *bool
	LastError *string
}

// Apply applies the patch to the operation in place.
func (p OperationPatch) Apply(op *PendingOperation) {
	if p.Synced != nil {
		op.Synced = *p.Synced
	}
	if p.LastError != nil {
		op.LastError = *p.LastError
	}
}
