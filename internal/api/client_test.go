// Package api tests for the central API client.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/kbrou/agrisync/internal/errors"
	"github.com/kbrou/agrisync/internal/models"
)

// recordedRequest captures what the server saw.
type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func newTestServer(status int, responseBody string) (*httptest.Server, *[]recordedRequest) {
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   string(body),
		})
		w.WriteHeader(status)
		if responseBody != "" {
			w.Write([]byte(responseBody))
		}
	}))
	return server, &requests
}

// TestCreate verifies POST /{resource} with the payload as body.
func TestCreate(t *testing.T) {
	server, requests := newTestServer(http.StatusCreated, "")
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	payload := json.RawMessage(`{"nom_complet":"KOUASSI JEAN"}`)

	if err := client.Create(context.Background(), models.ResourceProducteur, payload); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("request count = %d, want 1", len(*requests))
	}
	req := (*requests)[0]
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.Path != "/producteur" {
		t.Errorf("path = %s, want /producteur", req.Path)
	}
	if req.Body != string(payload) {
		t.Errorf("body = %s, want payload", req.Body)
	}
}

// TestUpdate verifies PUT /{resource}/{id}.
func TestUpdate(t *testing.T) {
	server, requests := newTestServer(http.StatusOK, "")
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	payload := json.RawMessage(`{"id":"prc-7","code":"P-099"}`)

	if err := client.Update(context.Background(), models.ResourceParcelle, "prc-7", payload); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	req := (*requests)[0]
	if req.Method != http.MethodPut {
		t.Errorf("method = %s, want PUT", req.Method)
	}
	if req.Path != "/parcelle/prc-7" {
		t.Errorf("path = %s, want /parcelle/prc-7", req.Path)
	}
}

// TestUpdate_missingID verifies an empty id is rejected before any request.
func TestUpdate_missingID(t *testing.T) {
	server, requests := newTestServer(http.StatusOK, "")
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	err := client.Update(context.Background(), models.ResourceParcelle, "", json.RawMessage(`{}`))

	if !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
	if len(*requests) != 0 {
		t.Errorf("request count = %d, want 0", len(*requests))
	}
}

// TestDelete verifies DELETE /{resource}/{id}.
func TestDelete(t *testing.T) {
	server, requests := newTestServer(http.StatusNoContent, "")
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	if err := client.Delete(context.Background(), models.ResourceOperation, "op-12"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	req := (*requests)[0]
	if req.Method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", req.Method)
	}
	if req.Path != "/operation/op-12" {
		t.Errorf("path = %s, want /operation/op-12", req.Path)
	}
}

// TestServerRejection verifies a non-2xx response surfaces as SERVER_REJECTED
// carrying the optional error body.
func TestServerRejection(t *testing.T) {
	server, _ := newTestServer(http.StatusUnprocessableEntity, `{"error":"nom_complet is required"}`)
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	err := client.Create(context.Background(), models.ResourceProducteur, json.RawMessage(`{}`))

	if !apperrors.Is(err, apperrors.ErrServerRejected) {
		t.Fatalf("error = %v, want SERVER_REJECTED", err)
	}
	if got := err.Error(); !strings.Contains(got, "nom_complet is required") {
		t.Errorf("error = %q, should carry the server message", got)
	}
	if got := err.Error(); !strings.Contains(got, "422") {
		t.Errorf("error = %q, should carry the status code", got)
	}
}

// TestNetworkError verifies an unreachable server surfaces as NETWORK_ERROR.
func TestNetworkError(t *testing.T) {
	server, _ := newTestServer(http.StatusOK, "")
	server.Close() // nothing listening any more

	client := NewClient(&Config{BaseURL: server.URL})
	err := client.Create(context.Background(), models.ResourceProducteur, json.RawMessage(`{}`))

	if !apperrors.Is(err, apperrors.ErrNetwork) {
		t.Errorf("error = %v, want NETWORK_ERROR", err)
	}
}
