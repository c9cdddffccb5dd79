package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arstudio/api/internal/model"
)

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	c := &Subscriber{JobID: "j1", Outbox: make(chan []byte, 4)}
	other := &Subscriber{JobID: "j2", Outbox: make(chan []byte, 4)}
	h.Register(c)
	h.Register(other)
	require.Eventually(t, func() bool { return h.Subscribers("j1") == 1 }, time.Second, 5*time.Millisecond)

	h.BroadcastProgress("j1", 25, model.JobStateValidating, "Validating 3 assets")

	select {
	case raw := <-c.Outbox:
		var msg model.JobProgressEvent
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.JobEventProgress, msg.Type)
		assert.Equal(t, 25, msg.Progress)
		assert.Equal(t, model.JobStateValidating, msg.State)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	assert.Empty(t, other.Outbox)
}

func TestHub_UnregisterClosesOnce(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	c := &Subscriber{JobID: "j1", Outbox: make(chan []byte, 1)}
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)

	require.Eventually(t, func() bool { return h.Subscribers("j1") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.Outbox
	assert.False(t, open)
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Stop()

	done := make(chan struct{})
	go func() {
		h.BroadcastError("j1", "JOB_FAILED", "boom")
		h.Register(&Subscriber{JobID: "j1", Outbox: make(chan []byte)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub blocked after stop")
	}
}

func TestProgressSnapshot(t *testing.T) {
	raw := ProgressSnapshot(&model.Job{ID: "j", State: model.JobStateDone, Progress: 100, Message: "Completed"})
	assert.JSONEq(t, `{"type":"progress","jobId":"j","progress":100,"state":"done","message":"Completed"}`, string(raw))
}

func TestHub_BroadcastCompleteCarriesResults(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	c := &Subscriber{JobID: "j1", Outbox: make(chan []byte, 4)}
	h.Register(c)
	require.Eventually(t, func() bool { return h.Subscribers("j1") == 1 }, time.Second, 5*time.Millisecond)

	h.BroadcastComplete("j1", []model.ResultArtifact{{ID: "r1", JobID: "j1", Kind: "zip", Filename: "j1.zip"}})

	select {
	case raw := <-c.Outbox:
		var msg model.JobCompleteEvent
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.JobEventComplete, msg.Type)
		require.Len(t, msg.Results, 1)
		assert.Equal(t, "j1.zip", msg.Results[0].Filename)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}
