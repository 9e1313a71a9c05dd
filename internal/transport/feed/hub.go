package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clawworld.ai/internal/protocol"
)

const (
	// Per-subscriber send buffer. A subscriber that stays this far
	// behind is dropped rather than allowed to stall the publisher.
	sendQueue = 64

	// Events replayed to a fresh subscriber so it sees recent activity.
	replayDepth = 50
)

// Hub fans world events out to websocket subscribers. Publish never
// blocks: slow subscribers are disconnected.
type Hub struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	recent [][]byte
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[chan []byte]struct{}),
	}
}

// Publish implements the world event sink.
func (h *Hub) Publish(e protocol.FeedEvent) {
	b, err := json.Marshal(e)
	if err != nil {
		h.log.Printf("feed: marshal event: %v", err)
		return
	}

	h.mu.Lock()
	h.recent = append(h.recent, b)
	if len(h.recent) > replayDepth {
		h.recent = h.recent[len(h.recent)-replayDepth:]
	}
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
			// Subscriber is not keeping up; cut it loose.
			delete(h.subs, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (ch chan []byte, replay [][]byte) {
	ch = make(chan []byte, sendQueue)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	replay = make([][]byte, len(h.recent))
	copy(replay, h.recent)
	h.mu.Unlock()
	return ch, replay
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Handler upgrades to a websocket and streams events until the client
// goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ch, replay := h.subscribe()
		defer h.unsubscribe(ch)

		for _, b := range replay {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range ch {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		}()

		// Reader loop: the feed is one-way; reads only detect closure
		// and answer pings.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		h.unsubscribe(ch)
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}
}
