package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cvalign/api/internal/model"
)

func newTestClient(jobID string) *Client {
	return &Client{JobID: jobID, Send: make(chan []byte, 4)}
}

func receiveFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to parse frame: %v\ndata: %s", err, data)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestHub_BroadcastCompleteFrame(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient("job-1")
	h.register <- c

	h.BroadcastComplete("job-1", []model.CandidateRecord{{Name: "Alice", Score: 87}})

	frame := receiveFrame(t, c)
	if frame["type"] != model.WSMessageTypeComplete {
		t.Errorf("expected type %q, got %v", model.WSMessageTypeComplete, frame["type"])
	}
	candidates, ok := frame["candidates"].([]interface{})
	if !ok {
		t.Fatalf("expected 'candidates' list, got %v", frame)
	}
	if len(candidates) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(candidates))
	}
}

func TestHub_BroadcastErrorFrame(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient("job-2")
	h.register <- c

	h.BroadcastError("job-2", "ANALYSIS_TIMEOUT", "no result within the window")

	frame := receiveFrame(t, c)
	if frame["type"] != model.WSMessageTypeError {
		t.Errorf("expected type %q, got %v", model.WSMessageTypeError, frame["type"])
	}
	if frame["code"] != "ANALYSIS_TIMEOUT" {
		t.Errorf("expected top-level code, got %v", frame["code"])
	}
	if frame["message"] != "no result within the window" {
		t.Errorf("expected top-level message, got %v", frame["message"])
	}
}

func TestHub_BroadcastOnlyReachesJobSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()

	mine := newTestClient("job-3")
	other := newTestClient("job-4")
	h.register <- mine
	h.register <- other

	h.BroadcastProgress("job-3", 30, model.JobStatusRunning, "Analysis in progress...")

	frame := receiveFrame(t, mine)
	if frame["jobId"] != "job-3" {
		t.Errorf("expected jobId job-3, got %v", frame["jobId"])
	}

	select {
	case data := <-other.Send:
		t.Errorf("subscriber of another job received frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_SendAfterCloseDoesNotPanic(t *testing.T) {
	c := newTestClient("job-5")

	c.closeSend()
	c.closeSend() // second close must be a no-op

	if c.trySend([]byte(`{"type":"pong"}`)) {
		t.Error("send after close must report a dropped frame")
	}
}

func TestClient_FullBufferDropsFrame(t *testing.T) {
	c := &Client{JobID: "job-6", Send: make(chan []byte, 1)}

	if !c.trySend([]byte("one")) {
		t.Fatal("first send should fit the buffer")
	}
	if c.trySend([]byte("two")) {
		t.Error("send into a full buffer must report a dropped frame")
	}
}
