// Package models tests for the pending operation model.
package models

import (
	"encoding/json"
	"testing"
)

// TestResourceTypeIsValid verifies the closed resource set.
func TestResourceTypeIsValid(t *testing.T) {
	valid := []ResourceType{
		ResourceOrganisation,
		ResourceSection,
		ResourceVillage,
		ResourceProducteur,
		ResourceParcelle,
		ResourceOperation,
		ResourceAgent,
	}

	for _, r := range valid {
		if !r.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", r)
		}
	}

	invalid := []ResourceType{"", "cooperative", "PRODUCTEUR", "producer"}
	for _, r := range invalid {
		if r.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", r)
		}
	}
}

// TestActionIsValid verifies the closed action set.
func TestActionIsValid(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		if !a.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", a)
		}
	}

	for _, a := range []Action{"", "upsert", "CREATE"} {
		if a.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", a)
		}
	}
}

// TestPayloadID verifies id extraction from the payload.
func TestPayloadID(t *testing.T) {
	op := PendingOperation{Payload: json.RawMessage(`{"id":"prd-042","nom_complet":"KOUASSI JEAN"}`)}
	if got := op.PayloadID(); got != "prd-042" {
		t.Errorf("PayloadID() = %q, want %q", got, "prd-042")
	}
}

// TestPayloadID_missing verifies a payload without an id yields empty.
func TestPayloadID_missing(t *testing.T) {
	op := PendingOperation{Payload: json.RawMessage(`{"code":"P-099"}`)}
	if got := op.PayloadID(); got != "" {
		t.Errorf("PayloadID() = %q, want empty", got)
	}
}

// TestPayloadID_invalid verifies malformed payloads yield empty, not panic.
func TestPayloadID_invalid(t *testing.T) {
	op := PendingOperation{Payload: json.RawMessage(`not json`)}
	if got := op.PayloadID(); got != "" {
		t.Errorf("PayloadID() = %q, want empty", got)
	}

	op = PendingOperation{}
	if got := op.PayloadID(); got != "" {
		t.Errorf("PayloadID() on nil payload = %q, want empty", got)
	}
}

// TestOperationPatchApply verifies field-level patching.
func TestOperationPatchApply(t *testing.T) {
	op := PendingOperation{ID: "x", Synced: false, LastError: "timeout"}

	synced := true
	noError := ""
	OperationPatch{Synced: &synced, LastError: &noError}.Apply(&op)

	if !op.Synced {
		t.Error("Synced = false, want true")
	}
	if op.LastError != "" {
		t.Errorf("LastError = %q, want empty", op.LastError)
	}
}

// TestOperationPatchApply_partial verifies nil fields are untouched.
func TestOperationPatchApply_partial(t *testing.T) {
	op := PendingOperation{ID: "x", Synced: true, LastError: ""}

	message := "server rejected"
	OperationPatch{LastError: &message}.Apply(&op)

	if !op.Synced {
		t.Error("Synced was modified by a patch without a Synced field")
	}
	if op.LastError != "server rejected" {
		t.Errorf("LastError = %q, want %q", op.LastError, "server rejected")
	}
}

// TestPendingOperationJSONRoundTrip verifies the stored record shape.
func TestPendingOperationJSONRoundTrip(t *testing.T) {
	op := PendingOperation{
		ID:           "producteur-create-1717430400123-9f3c21ab",
		ResourceType: ResourceProducteur,
		Action:       ActionCreate,
		Payload:      json.RawMessage(`{"nom_complet":"KOUASSI JEAN"}`),
		CreatedAt:    1717430400123,
	}

	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded PendingOperation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != op.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, op.ID)
	}
	if decoded.ResourceType != ResourceProducteur {
		t.Errorf("ResourceType = %q, want producteur", decoded.ResourceType)
	}
	if decoded.Synced {
		t.Error("Synced should default to false")
	}
	if decoded.LastError != "" {
		t.Error("LastError should be omitted when empty")
	}
}
