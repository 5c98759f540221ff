// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package websocket pushes pipeline progress to connected journal
// clients: transcript completion, tracker updates, and finished weekly
// summaries. Messages are targeted at the owning user; connections for
// other users never see them.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeEntryTranscribed = "entry_transcribed"
	MessageTypeTrackerUpdated   = "tracker_updated"
	MessageTypeSummaryReady     = "summary_ready"
)

// Message is the envelope for every WebSocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// targetedMessage pairs a message with its destination. An empty userID
// broadcasts to every connection.
type targetedMessage struct {
	userID  string
	message Message
}

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	clients    map[*Client]bool
	outbound   chan targetedMessage
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub. Run it under the supervisor with RunWithContext.
func NewHub() *Hub {
	return &Hub{
		outbound:   make(chan targetedMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Done is closed when the hub stops servicing lifecycle channels. Client
// goroutines select on it so unregistration never blocks after shutdown.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RunWithContext services the hub until ctx is cancelled, then closes
// every connection and returns ctx.Err(). Lifecycle events take
// priority over message delivery so client state is settled before a
// message fans out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Lifecycle first, non-blocking.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("user_id", client.userID).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("user_id", client.userID).Int("total_clients", total).Msg("websocket client disconnected")
}

// deliver sends a message to every matching client in ID order. Clients
// whose send buffer is full are dropped; a stalled reader must not back
// up the hub.
func (h *Hub) deliver(msg targetedMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if msg.userID == "" || client.userID == msg.userID {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg.message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow websocket clients")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// send enqueues a message without blocking; full hub buffer drops it.
func (h *Hub) send(userID, messageType string, data interface{}) {
	msg := targetedMessage{
		userID:  userID,
		message: Message{Type: messageType, Data: data},
	}
	select {
	case h.outbound <- msg:
	default:
		logging.Warn().Str("message_type", messageType).Msg("websocket outbound channel full, dropping message")
	}
}

// EntryTranscribedData accompanies entry_transcribed messages.
type EntryTranscribedData struct {
	EntryID    string `json:"entry_id"`
	Status     string `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// NotifyEntryTranscribed tells a user's clients that a voice entry
// finished (or failed) transcription.
func (h *Hub) NotifyEntryTranscribed(userID, entryID, status, transcript, errMsg string) {
	h.send(userID, MessageTypeEntryTranscribed, EntryTranscribedData{
		EntryID:    entryID,
		Status:     status,
		Transcript: transcript,
		Error:      errMsg,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// NotifyTrackerUpdated pushes a freshly recomputed tracker to a user.
func (h *Hub) NotifyTrackerUpdated(userID string, tracker interface{}) {
	h.send(userID, MessageTypeTrackerUpdated, tracker)
}

// SummaryReadyData accompanies summary_ready messages.
type SummaryReadyData struct {
	Year     int    `json:"year"`
	Week     int    `json:"week"`
	Phase    string `json:"phase,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// NotifySummaryReady tells a user's clients a weekly summary is available.
func (h *Hub) NotifySummaryReady(userID string, year, week int, phase, audioURL string) {
	h.send(userID, MessageTypeSummaryReady, SummaryReadyData{
		Year:     year,
		Week:     week,
		Phase:    phase,
		AudioURL: audioURL,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
