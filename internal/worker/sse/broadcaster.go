// Package sse streams session events to dashboard clients as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/metrics"
	"github.com/thebtf/workoutdiary/internal/worker/session"
)

const (
	// WriteTimeout is the timeout for writing to SSE clients.
	// Prevents blocking on stale connections.
	WriteTimeout = 2 * time.Second
)

// Client represents a connected SSE client.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	mu      sync.Mutex
}

// Broadcaster fans session events out to every connected client. It keeps
// the latest event per stream so that a client connecting late starts from
// the current state.
type Broadcaster struct {
	clients map[string]*Client
	latest  map[string]string
	metrics *metrics.Metrics
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
		latest:  make(map[string]string),
	}
}

// Instrument reports client counts and published events to m.
func (b *Broadcaster) Instrument(m *metrics.Metrics) {
	b.mu.Lock()
	b.metrics = m
	b.mu.Unlock()
}

// AddClient adds a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:      id,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[id] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	b.setClientGauge(clientCount)
	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client connection.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	clientCount := len(b.clients)
	b.mu.Unlock()

	closeDone(client)
	b.setClientGauge(clientCount)

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// removeClientByID removes a client by ID (for dead client cleanup).
func (b *Broadcaster) removeClientByID(id string) {
	b.mu.Lock()
	client, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	clientCount := len(b.clients)
	b.mu.Unlock()

	if exists {
		closeDone(client)
	}
	b.setClientGauge(clientCount)

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("Dead SSE client removed")
}

func closeDone(client *Client) {
	if client.Done == nil {
		return
	}
	select {
	case <-client.Done:
	default:
		close(client.Done)
	}
}

// Publish implements session.Sink. The event is sent under its type as the
// SSE event name and remembered as the latest state of its stream.
func (b *Broadcaster) Publish(e session.Event) {
	message, err := frame(string(e.Type), e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("Failed to marshal SSE event")
		return
	}

	key := streamKey(e)
	b.mu.Lock()
	if e.Type == session.EventClosed {
		delete(b.latest, streamKey(session.Event{Type: session.EventWindow, Exercise: e.Exercise}))
		delete(b.latest, streamKey(session.Event{Type: session.EventSelection, Exercise: e.Exercise}))
	} else {
		b.latest[key] = message
	}
	m := b.metrics
	b.mu.Unlock()

	if m != nil {
		m.EventsPublished.WithLabelValues(string(e.Type)).Inc()
	}
	b.send(message)
}

// Broadcast sends data as an unnamed event to all connected clients.
func (b *Broadcaster) Broadcast(data any) {
	message, err := frame("", data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}
	b.send(message)
}

func frame(event string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	if event == "" {
		return fmt.Sprintf("data: %s\n\n", jsonData), nil
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, jsonData), nil
}

func streamKey(e session.Event) string {
	return string(e.Type) + "/" + e.Exercise
}

// send writes message to all clients.
// Uses non-blocking writes with timeout to prevent stale connections from blocking.
func (b *Broadcaster) send(message string) {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	deadClientsCh := make(chan string, len(clients))
	var wg sync.WaitGroup

	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				b.writeToClient(c, message, deadClientsCh)
			}(client)
		}
	}

	wg.Wait()
	close(deadClientsCh)

	for clientID := range deadClientsCh {
		b.removeClientByID(clientID)
	}
}

// writeToClient writes a message to a single client with timeout. Only
// this function reports to deadCh; the writer goroutine may outlive it.
func (b *Broadcaster) writeToClient(client *Client, message string, deadCh chan<- string) {
	done := make(chan error, 1)

	go func() {
		client.mu.Lock()
		defer client.mu.Unlock()
		_, err := client.Writer.Write([]byte(message))
		if err == nil {
			client.Flusher.Flush()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Debug().
				Str("clientId", client.ID).
				Err(err).
				Msg("Failed to write to SSE client, marking for removal")
			deadCh <- client.ID
		}
	case <-time.After(WriteTimeout):
		log.Warn().
			Str("clientId", client.ID).
			Dur("timeout", WriteTimeout).
			Msg("SSE write timed out, marking client for removal")
		deadCh <- client.ID
	case <-client.Done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Latest returns the remembered events in a stable order.
func (b *Broadcaster) Latest() []string {
	b.mu.RLock()
	keys := make([]string, 0, len(b.latest))
	for k := range b.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.latest[k])
	}
	b.mu.RUnlock()
	return out
}

func (b *Broadcaster) setClientGauge(n int) {
	b.mu.RLock()
	m := b.metrics
	b.mu.RUnlock()
	if m != nil {
		m.EventClients.Set(float64(n))
	}
}

// HandleSSE handles an SSE connection request.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	client.mu.Lock()
	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", client.ID)
	for _, message := range b.Latest() {
		_, _ = w.Write([]byte(message))
	}
	client.Flusher.Flush()
	client.mu.Unlock()

	<-r.Context().Done()
}
