package mockbackend

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/wire"
)

const subscriberBuffer = 16

// hub fans status messages out to the websocket subscribers of each job. The last message
// per job is replayed to late subscribers so a client that connects after processing
// finished still sees the outcome.
type hub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[entity.JobID]map[*subscriber]struct{}
	last map[entity.JobID][]byte
}

type subscriber struct {
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger,
		subs:   map[entity.JobID]map[*subscriber]struct{}{},
		last:   map[entity.JobID][]byte{},
	}
}

func (h *hub) subscribe(id entity.JobID) *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = map[*subscriber]struct{}{}
	}
	h.subs[id][sub] = struct{}{}
	if msg, ok := h.last[id]; ok {
		sub.send <- msg
	}
	return sub
}

func (h *hub) unsubscribe(id entity.JobID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[id]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	sub.close()
}

func (h *hub) publish(msg wire.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("mock.hub.marshal_error", "job_id", msg.JobID, "error", err)
		return
	}
	h.publishRaw(msg.JobID, raw)
}

// publishRaw stores raw as the job's last message and queues it for every subscriber.
// A subscriber whose buffer is full misses the message.
func (h *hub) publishRaw(id entity.JobID, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[id] = raw
	for sub := range h.subs[id] {
		select {
		case sub.send <- raw:
		default:
			h.logger.Warn("mock.hub.subscriber_slow", "job_id", id)
		}
	}
}

func (h *hub) forget(id entity.JobID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.last, id)
}

// closeAll ends every subscription, used on server shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, id)
	}
}

// serve pumps messages from sub to conn until the peer goes away or the subscription ends.
func (h *hub) serve(id entity.JobID, conn *websocket.Conn) {
	sub := h.subscribe(id)
	defer h.unsubscribe(id, sub)

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-peerGone:
			_ = conn.Close()
			return
		case raw, ok := <-sub.send:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.logger.Warn("mock.ws.write_error", "job_id", id, "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}
