package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestJob_Queued(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# doc")

	resp, err := doRequest(ta.app, http.MethodGet, "/job/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	meta, _ := result["metadata"].(map[string]interface{})
	if meta == nil {
		t.Fatalf("expected metadata in response: %v", result)
	}
	if meta["status"] != "queued" {
		t.Errorf("status = %v, want queued", meta["status"])
	}
	if meta["jobId"] != jobID {
		t.Errorf("jobId = %v, want %s", meta["jobId"], jobID)
	}
	artifacts, _ := result["artifacts"].([]interface{})
	if len(artifacts) != 0 {
		t.Errorf("queued job should list no artifacts, got %v", artifacts)
	}
}

func TestJob_Unknown(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/job/"+uuid.New().String(), "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, resp), "NOT_FOUND")
}

func TestProgress_PendingBeforeExtraction(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# doc")

	resp, err := doRequest(ta.app, http.MethodGet, "/job/"+jobID+"/progress", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["stage"] != "pending" {
		t.Errorf("stage = %v, want pending", result["stage"])
	}
	if result["percent"] != float64(0) {
		t.Errorf("percent = %v, want 0", result["percent"])
	}
}

func TestProgress_Unknown(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/job/"+uuid.New().String()+"/progress", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, resp), "NOT_FOUND")
}
