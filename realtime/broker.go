package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types streamed to clients
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
	EventUnitFailed  = "unit_failed"
)

// Event describes a calculator run transition
type Event struct {
	Type   string      `json:"type"`
	Job    string      `json:"job"`
	RunID  string      `json:"run_id"`
	Status string      `json:"status,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
	At     time.Time   `json:"at"`
}

const (
	clientBuffer = 16
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Broker fans run events out to SSE and websocket clients
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	mu         sync.RWMutex

	latest map[string]Event // last run_finished per job

	upgrader websocket.Upgrader
}

// NewBroker creates a new broker
func NewBroker() *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 256),
		latest:     make(map[string]Event),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the broker loop and returns when ctx is done
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			n := len(b.clients)
			b.mu.Unlock()
			log.Debug().Int("clients", n).Msg("Event client connected")

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			n := len(b.clients)
			b.mu.Unlock()
			log.Debug().Int("clients", n).Msg("Event client disconnected")

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients
func (b *Broker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Latest returns the most recent run_finished event of every job, ordered by job
func (b *Broker) Latest() []Event {
	b.mu.RLock()
	out := make([]Event, 0, len(b.latest))
	for _, ev := range b.latest {
		out = append(out, ev)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// Publish queues an event for every connected client. Events are dropped when the queue is full.
func (b *Broker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	if ev.Type == EventRunFinished {
		b.mu.Lock()
		b.latest[ev.Job] = ev
		b.mu.Unlock()
	}

	jsonBytes, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Error marshalling event")
		return
	}

	select {
	case b.broadcast <- jsonBytes:
	default:
		// Drop if broadcast buffer full
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientChan := make(chan []byte, clientBuffer)
	b.register <- clientChan

	for {
		select {
		case <-r.Context().Done():
			b.drop(clientChan)
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ServeWS streams the same events over a websocket
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	clientChan := make(chan []byte, clientBuffer)
	b.register <- clientChan

	// The read side only exists to notice the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			b.drop(clientChan)
			return
		case <-r.Context().Done():
			b.drop(clientChan)
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.drop(clientChan)
				return
			}
		case msg, ok := <-clientChan:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.drop(clientChan)
				return
			}
		}
	}
}

// drop unregisters a client unless the broker loop already shut down
func (b *Broker) drop(client chan []byte) {
	b.mu.RLock()
	_, ok := b.clients[client]
	b.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case b.unregister <- client:
	case <-time.After(time.Second):
	}
}
