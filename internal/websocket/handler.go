package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/playback"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/sessions"
	"github.com/word-battle/internal/storage"
)

// Message types
const (
	TypeWatch    = "watch"
	TypeStop     = "stop"
	TypeStarted  = "started"
	TypeFrame    = "frame"
	TypeFinished = "finished"
	TypeStopped  = "stopped"
	TypeError    = "error"
)

// maxDelay bounds the pacing a client may ask for
const maxDelay = 10 * time.Second

// Message represents a server to client message
type Message struct {
	Type      string         `json:"type"`
	ReplayID  string         `json:"replayId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Frame     *game.Snapshot `json:"frame,omitempty"`
	State     game.State     `json:"state,omitempty"`
	Winner    string         `json:"winner,omitempty"`
	Index     int            `json:"index,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type     string `json:"type"`
	ReplayID string `json:"replayId,omitempty"`
	DelayMs  *int   `json:"delayMs,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	registry     *sessions.Registry
	store        storage.Store
	defaultDelay time.Duration

	// Callbacks
	onTurn     func(e *sessions.Entry, index int, ev replay.TurnEvent)
	onFinished func(e *sessions.Entry)
}

// NewHandler creates a new message handler
func NewHandler(registry *sessions.Registry, store storage.Store, defaultDelay time.Duration) *Handler {
	return &Handler{
		registry:     registry,
		store:        store,
		defaultDelay: defaultDelay,
	}
}

// SetOnTurn sets the callback run after every applied event
func (h *Handler) SetOnTurn(callback func(e *sessions.Entry, index int, ev replay.TurnEvent)) {
	h.onTurn = callback
}

// SetOnFinished sets the callback for a playback that reached its terminal event
func (h *Handler) SetOnFinished(callback func(e *sessions.Entry)) {
	h.onFinished = callback
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Str("component", "ws").Str("client", client.id).Err(err).Msg("invalid message")
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeWatch:
		h.handleWatch(client, msg)
	case TypeStop:
		h.handleStop(client)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

func (h *Handler) delay(msg IncomingMessage) time.Duration {
	if msg.DelayMs == nil {
		return h.defaultDelay
	}
	d := time.Duration(*msg.DelayMs) * time.Millisecond
	return max(0, min(d, maxDelay))
}

// handleWatch starts a fresh playback of a stored replay for the client
func (h *Handler) handleWatch(client *Client, msg IncomingMessage) {
	if msg.ReplayID == "" {
		client.sendMessage(Message{Type: TypeError, Message: "replayId is required"})
		return
	}

	stored, err := h.store.Get(context.Background(), msg.ReplayID)
	if err != nil {
		text := "Failed to load replay"
		if errors.Is(err, storage.ErrNotFound) {
			text = "Replay not found"
		} else {
			log.Error().Str("component", "ws").Str("replay_id", msg.ReplayID).Err(err).Msg("load replay")
		}
		client.sendMessage(Message{Type: TypeError, ReplayID: msg.ReplayID, Message: text})
		return
	}

	entry, err := h.registry.Start(context.Background(), client.id, stored.ID, stored.Record)
	if err != nil {
		client.sendMessage(errorMessage(stored.ID, "", err))
		return
	}

	client.sendMessage(Message{Type: TypeStarted, ReplayID: entry.ReplayID, SessionID: entry.Session.ID})
	go h.play(client, entry, h.delay(msg))
}

// play streams the entry's frames to the client until the log ends or the
// playback is stopped
func (h *Handler) play(client *Client, entry *sessions.Entry, delay time.Duration) {
	defer h.registry.Remove(entry.Session.ID)

	ctx := entry.Context()
	opts := playback.Options{
		Delay: delay,
		Hooks: playback.Hooks{
			OnTurn: func(_ *game.Session, index int, ev replay.TurnEvent) {
				if h.onTurn != nil {
					h.onTurn(entry, index, ev)
				}
			},
			OnFinished: func(*game.Session) {
				if h.onFinished != nil {
					h.onFinished(entry)
				}
			},
		},
	}

	final, err := playback.Run(ctx, entry.Session, entry.Record.Events, opts, func(s game.Snapshot) error {
		return client.deliver(ctx, Message{Type: TypeFrame, ReplayID: entry.ReplayID, SessionID: s.SessionID, Frame: &s})
	})

	switch {
	case err == nil:
		client.sendMessage(Message{
			Type:      TypeFinished,
			ReplayID:  entry.ReplayID,
			SessionID: entry.Session.ID,
			State:     final.State,
			Winner:    final.Winner,
		})
		log.Info().Str("component", "ws").Str("replay_id", entry.ReplayID).Str("session_id", entry.Session.ID).Str("state", string(final.State)).Msg("playback finished")
	case errors.Is(err, context.Canceled), errors.Is(err, errClientClosed):
		log.Debug().Str("component", "ws").Str("session_id", entry.Session.ID).Msg("playback stopped")
	default:
		client.sendMessage(errorMessage(entry.ReplayID, entry.Session.ID, err))
	}
}

// handleStop cancels the client's playback
func (h *Handler) handleStop(client *Client) {
	entry := h.registry.GetByObserver(client.id)
	if entry == nil || h.registry.Stop(client.id) != nil {
		client.sendMessage(Message{Type: TypeError, Message: "No playback running"})
		return
	}
	client.sendMessage(Message{Type: TypeStopped, ReplayID: entry.ReplayID, SessionID: entry.Session.ID})
}

func errorMessage(replayID, sessionID string, err error) Message {
	msg := Message{Type: TypeError, ReplayID: replayID, SessionID: sessionID, Message: err.Error()}
	var ce *game.ConsistencyError
	if errors.As(err, &ce) {
		msg.Index = ce.Index
	}
	return msg
}
