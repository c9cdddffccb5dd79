package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/arstudio/api/internal/model"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
)

// Subscriber receives every update of one job
type Subscriber struct {
	JobID  string
	Outbox chan []byte

	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.Outbox) })
}

// Hub fans job updates out to websocket subscribers
type Hub struct {
	// subscribers grouped by job ID
	subs map[string]map[*Subscriber]bool

	join      chan *Subscriber
	leave     chan *Subscriber
	broadcast chan *jobMessage
	done      chan struct{}

	mu sync.RWMutex
}

// jobMessage is an encoded message for one job's subscribers
type jobMessage struct {
	JobID   string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		subs:      make(map[string]map[*Subscriber]bool),
		join:      make(chan *Subscriber),
		leave:     make(chan *Subscriber),
		broadcast: make(chan *jobMessage, 256),
		done:      make(chan struct{}),
	}
}

// Run is the hub's main loop; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, subs := range h.subs {
				for sub := range subs {
					sub.close()
				}
			}
			h.subs = make(map[string]map[*Subscriber]bool)
			h.mu.Unlock()
			return

		case sub := <-h.join:
			h.mu.Lock()
			if h.subs[sub.JobID] == nil {
				h.subs[sub.JobID] = make(map[*Subscriber]bool)
			}
			h.subs[sub.JobID][sub] = true
			h.mu.Unlock()
			log.Printf("[Hub] subscriber joined job %s", sub.JobID)

		case sub := <-h.leave:
			h.remove(sub)
			log.Printf("[Hub] subscriber left job %s", sub.JobID)

		case msg := <-h.broadcast:
			var slow []*Subscriber
			h.mu.RLock()
			for sub := range h.subs[msg.JobID] {
				select {
				case sub.Outbox <- msg.Message:
				default:
					slow = append(slow, sub)
				}
			}
			h.mu.RUnlock()
			for _, sub := range slow {
				log.Printf("[Hub] dropping slow subscriber of job %s", sub.JobID)
				h.remove(sub)
			}
		}
	}
}

// Stop ends Run and closes every subscriber
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.JobID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			sub.close()
			if len(subs) == 0 {
				delete(h.subs, sub.JobID)
			}
		}
	}
}

// Subscribers returns how many subscribers watch jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

// Register subscribes sub to its job
func (h *Hub) Register(sub *Subscriber) {
	select {
	case h.join <- sub:
	case <-h.done:
		sub.close()
	}
}

// Unregister drops sub; repeated calls are harmless
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.leave <- sub:
	case <-h.done:
	}
}

// publish never blocks the caller; updates are dropped when the hub is
// saturated or stopped.
func (h *Hub) publish(jobID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Hub] failed to encode update for job %s: %v", jobID, err)
		return
	}
	select {
	case h.broadcast <- &jobMessage{JobID: jobID, Message: data}:
	case <-h.done:
	default:
		log.Printf("[Hub] saturated, dropping update for job %s", jobID)
	}
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, progress int, state model.JobState, message string) {
	h.publish(jobID, model.JobProgressEvent{
		Type:     model.JobEventProgress,
		JobID:    jobID,
		Progress: progress,
		State:    state,
		Message:  message,
	})
}

// BroadcastComplete sends a completion message to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, results []model.ResultArtifact) {
	h.publish(jobID, model.JobCompleteEvent{
		Type:    model.JobEventComplete,
		JobID:   jobID,
		Results: results,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(jobID, model.JobErrorEvent{
		Type:  model.JobEventError,
		JobID: jobID,
		Error: model.JobEventErr{Code: code, Message: message},
	})
}

// ProgressSnapshot encodes the current state of job for a new subscriber
func ProgressSnapshot(job *model.Job) []byte {
	data, _ := json.Marshal(model.JobProgressEvent{
		Type:     model.JobEventProgress,
		JobID:    job.ID,
		Progress: job.Progress,
		State:    job.State,
		Message:  job.Message,
	})
	return data
}

// HandleConnection serves one websocket until it closes. initial, when
// non-nil, is sent before any broadcast.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, initial []byte) {
	sub := &Subscriber{
		JobID:  jobID,
		Outbox: make(chan []byte, sendBuffer),
	}
	if initial != nil {
		sub.Outbox <- initial
	}
	// replies to the client itself; never closed, unlike Outbox
	control := make(chan []byte, 1)

	h.Register(sub)
	defer h.Unregister(sub)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-sub.Outbox:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case message := <-control:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.JobEventFrame
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.JobEventPing {
			pong, _ := json.Marshal(model.JobEventFrame{Type: model.JobEventPong})
			select {
			case control <- pong:
			default:
			}
		}
	}
}
