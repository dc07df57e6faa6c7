package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/doclingui/api/internal/model"
)

func subscribe(t *testing.T, h *Hub, jobID string) *Client {
	t.Helper()
	client := &Client{JobID: jobID, Send: make(chan []byte, 16)}
	h.register <- client
	return client
}

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg := <-client.Send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub message")
		return nil
	}
}

func TestHub_BroadcastProgress(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := subscribe(t, h, "job-1")
	h.BroadcastProgress("job-1", model.JobStatusRunning, "Chunking", 90)

	var msg model.WSProgressMessage
	if err := json.Unmarshal(receive(t, client), &msg); err != nil {
		t.Fatalf("invalid progress message: %v", err)
	}
	if msg.Type != model.WSMessageTypeProgress {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.JobID != "job-1" || msg.Stage != "Chunking" || msg.Percent != 90 {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestHub_BroadcastScopedToJob(t *testing.T) {
	h := NewHub()
	go h.Run()

	target := subscribe(t, h, "job-1")
	other := subscribe(t, h, "job-2")

	h.BroadcastComplete("job-1", []string{"doc.document.md"})

	var msg model.WSCompleteMessage
	if err := json.Unmarshal(receive(t, target), &msg); err != nil {
		t.Fatalf("invalid complete message: %v", err)
	}
	if len(msg.Artifacts) != 1 || msg.Artifacts[0] != "doc.document.md" {
		t.Errorf("artifacts = %v", msg.Artifacts)
	}

	select {
	case leaked := <-other.Send:
		t.Errorf("subscriber of another job received %s", leaked)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()

	// Nobody listening: must not block or panic
	h.BroadcastError("job-9", "EXTRACTION_FAILED", "converter crashed")
	h.BroadcastProgress("job-9", model.JobStatusRunning, "Converting document", 25)
}
