package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestArtifact_Download(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# downloadable")
	resp, err := doRequest(ta.app, http.MethodPost, "/extract/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("extract request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	waitForJobStatus(t, ta, jobID, "complete")

	resp, err = doRequest(ta.app, http.MethodGet, "/artifact/"+jobID+"/doc.document.md", "", nil)
	if err != nil {
		t.Fatalf("artifact request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
	if got := readBody(t, resp); got != "# downloadable" {
		t.Errorf("artifact body = %q", got)
	}
}

func TestArtifact_UnknownFilename(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# doc")

	resp, err := doRequest(ta.app, http.MethodGet, "/artifact/"+jobID+"/nope.md", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, resp), "NOT_FOUND")
}

func TestArtifact_TraversalRejected(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# doc")

	resp, err := doRequest(ta.app, http.MethodGet, "/artifact/"+jobID+"/..%2F..%2Fsecret", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Error("traversal filename must not resolve to a file")
	}
	resp.Body.Close()
}

func TestArtifact_BookkeepingNotListed(t *testing.T) {
	ta := setupApp(t)

	jobID := uploadDocument(t, ta, "doc.md", "# doc")
	resp, err := doRequest(ta.app, http.MethodPost, "/extract/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("extract request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	result := waitForJobStatus(t, ta, jobID, "complete")
	artifacts, _ := result["artifacts"].([]interface{})
	for _, a := range artifacts {
		name, _ := a.(string)
		if name == "progress.json" || name == "processing_request.json" {
			t.Errorf("bookkeeping file %q listed as artifact", name)
		}
	}
}
