package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"dash_go/internal/domain"
	"dash_go/internal/event"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one connected view client.
type Client struct {
	hub  *ViewServer
	conn *websocket.Conn
	send chan *Frame
}

// inboundMessage is the envelope view clients send: a pointer gesture
// sample or an explicit command.
type inboundMessage struct {
	Type    string          `json:"type"` // "pointer" or "command"
	Pointer *pointerMessage `json:"pointer,omitempty"`
	Command *commandMessage `json:"command,omitempty"`
}

type pointerMessage struct {
	Phase        string        `json:"phase"` // "down", "move", "up"
	X            float64       `json:"x"`
	Y            float64       `json:"y"`
	OriginX      float64       `json:"origin_x"`
	OriginY      float64       `json:"origin_y"`
	Touches      []event.Touch `json:"touches,omitempty"`
	WidgetID     string        `json:"widget_id,omitempty"`
	CloseControl bool          `json:"close_control,omitempty"`
}

type commandMessage struct {
	Action    string   `json:"action"`
	Kind      string   `json:"kind,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
	WidgetID  string   `json:"widget_id,omitempty"`
	TargetKey string   `json:"target_key,omitempty"`
	Scale     float64  `json:"scale,omitempty"`
	Theme     string   `json:"theme,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
}

// readPump handles incoming messages and doubles as the connection
// watchdog via the pong deadline.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		slog.Debug("View client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("View client read error", slog.Any("error", err))
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump sends frames and keepalive pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("View client write error", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage converts one inbound message to a dispatcher event.
// Malformed messages are dropped with a log, never an error to the client.
func (c *Client) handleMessage(message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Warn("Malformed view message", slog.Any("error", err))
		return
	}

	switch msg.Type {
	case "pointer":
		if msg.Pointer == nil {
			return
		}
		ev := event.AcquirePointerEvent()
		ev.Phase = parsePhase(msg.Pointer.Phase)
		ev.X = msg.Pointer.X
		ev.Y = msg.Pointer.Y
		ev.OriginX = msg.Pointer.OriginX
		ev.OriginY = msg.Pointer.OriginY
		ev.Touches = msg.Pointer.Touches
		ev.WidgetID = msg.Pointer.WidgetID
		ev.CloseControl = msg.Pointer.CloseControl
		if ev.Phase == 0 {
			event.ReleasePointerEvent(ev)
			return
		}
		c.hub.submit(ev)

	case "command":
		if msg.Command == nil {
			return
		}
		kinds := make([]domain.WidgetKind, 0, len(msg.Command.Kinds))
		for _, k := range msg.Command.Kinds {
			kinds = append(kinds, domain.WidgetKind(k))
		}
		c.hub.submit(&event.CommandEvent{
			Action:    event.CommandAction(msg.Command.Action),
			Kind:      domain.WidgetKind(msg.Command.Kind),
			Kinds:     kinds,
			WidgetID:  msg.Command.WidgetID,
			TargetKey: msg.Command.TargetKey,
			Scale:     msg.Command.Scale,
			Theme:     msg.Command.Theme,
			Width:     msg.Command.Width,
			Height:    msg.Command.Height,
		})

	default:
		slog.Debug("Unknown view message type", slog.String("type", msg.Type))
	}
}

func parsePhase(s string) event.PointerPhase {
	switch s {
	case "down":
		return event.PhaseDown
	case "move":
		return event.PhaseMove
	case "up":
		return event.PhaseUp
	default:
		return 0
	}
}
