package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dash_go/internal/canvas"
	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/infra"
	"dash_go/internal/storage"
	"dash_go/internal/widget"
)

// Frame is one complete view update sent to browser clients: the drawable
// state of every widget plus the layout and derived view geometry. Clients
// are dumb renderers; all layout math happens server-side.
type Frame struct {
	Type      string                `json:"type"` // "INITIAL" or "UPDATE"
	Widgets   []widget.RenderState  `json:"widgets"`
	Layout    []domain.WidgetConfig `json:"layout"`
	View      canvas.ViewState      `json:"view"`
	Theme     string                `json:"theme,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// ViewServer serves the REST API and the websocket endpoint view clients
// connect to. Outbound frames fan out through a hub loop; inbound pointer
// and command messages are converted to events and submitted to the
// dispatcher inbox, never handled here.
type ViewServer struct {
	cfg    *infra.Config
	engine *gin.Engine
	store  *storage.Storage
	inbox  chan<- event.Event

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *Frame
	register   chan *Client
	unregister chan *Client

	latestFrame *Frame
	frameMutex  sync.RWMutex

	done chan struct{}
}

// NewViewServer builds the server and its routes.
func NewViewServer(cfg *infra.Config, store *storage.Storage, inbox chan<- event.Event) *ViewServer {
	if strings.ToUpper(cfg.Logging.Level) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ViewServer{
		cfg:     cfg,
		engine:  gin.Default(),
		store:   store,
		inbox:   inbox,
		clients: make(map[*Client]struct{}),
		// Buffered so a burst of frames never blocks the dispatcher
		broadcast:  make(chan *Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

func (s *ViewServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/layout", s.getLayout)
	s.engine.GET("/api/layout/:id", s.getWidget)
	s.engine.POST("/api/layout", s.postLayout)
	s.engine.DELETE("/api/layout", s.deleteLayout)
	s.engine.GET("/api/status", s.getStatus)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Start runs the hub loop and blocks serving HTTP.
func (s *ViewServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	slog.Info("🌐 View server starting", slog.String("addr", addr))

	go s.runHub()

	return s.engine.Run(addr)
}

// Stop terminates the hub loop and disconnects every client.
func (s *ViewServer) Stop() {
	close(s.done)
}

// Broadcast queues a frame for fan-out. Non-blocking: when the queue is
// full the frame is dropped, the next one carries the full state anyway.
func (s *ViewServer) Broadcast(frame *Frame) {
	select {
	case s.broadcast <- frame:
		infra.GlobalMetrics.RecordFrameBroadcast()
	default:
		infra.GlobalMetrics.RecordDroppedEvent()
		slog.Warn("Frame queue full, dropping frame")
	}
}

// runHub is the hub loop: client registry mutation and frame fan-out happen
// only here.
func (s *ViewServer) runHub() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			infra.GlobalMetrics.IncrementViewClients()

			// Send the last frame so a reconnecting client renders
			// immediately instead of waiting for the next update.
			s.frameMutex.RLock()
			if s.latestFrame != nil {
				initial := *s.latestFrame
				initial.Type = "INITIAL"
				client.send <- &initial
			}
			s.frameMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				infra.GlobalMetrics.DecrementViewClients()
			}

		case frame := <-s.broadcast:
			s.frameMutex.Lock()
			s.latestFrame = frame
			s.frameMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- frame:
				default:
					// Client too slow, disconnect to prevent hub blocking
					delete(s.clients, client)
					close(client.send)
					infra.GlobalMetrics.DecrementViewClients()
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *ViewServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Failed to upgrade websocket", slog.Any("error", err))
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the hub loop
		send: make(chan *Frame, 64),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// submit forwards an event to the dispatcher inbox without blocking the
// websocket read goroutine.
func (s *ViewServer) submit(ev event.Event) {
	select {
	case s.inbox <- ev:
	default:
		infra.GlobalMetrics.RecordDroppedEvent()
		slog.Warn("Inbox full, dropping view event", slog.String("type", ev.GetType().String()))
	}
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *ViewServer) getLayout(c *gin.Context) {
	c.JSON(200, s.store.LoadLayout())
}

func (s *ViewServer) getWidget(c *gin.Context) {
	cfg, err := s.store.GetWidget(c.Param("id"))
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if cfg == nil {
		c.JSON(404, gin.H{"error": "widget not found"})
		return
	}
	c.JSON(200, cfg)
}

// postLayout replaces the layout through the dispatcher, not the store: the
// dispatcher remounts the widgets and persists them itself, so the live
// frames and the saved rows never diverge.
func (s *ViewServer) postLayout(c *gin.Context) {
	var layout domain.LayoutConfig
	if err := c.ShouldBindJSON(&layout); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	for _, w := range layout.Widgets {
		if !w.Kind.IsValid() {
			c.JSON(400, gin.H{"error": fmt.Sprintf("unknown widget kind: %s", w.Kind)})
			return
		}
	}

	s.submit(&event.CommandEvent{
		Action:  event.ActionReplaceLayout,
		Configs: layout.Widgets,
	})
	c.JSON(202, gin.H{"status": "accepted", "widgets": len(layout.Widgets)})
}

func (s *ViewServer) deleteLayout(c *gin.Context) {
	s.submit(&event.CommandEvent{Action: event.ActionClearAll})
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *ViewServer) getStatus(c *gin.Context) {
	c.JSON(200, infra.GlobalMetrics.Snapshot())
}

func (s *ViewServer) getHealth(c *gin.Context) {
	s.frameMutex.RLock()
	var latest int64
	if s.latestFrame != nil {
		latest = s.latestFrame.Timestamp
	}
	s.frameMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":        "ok",
		"latest_update": latest,
		"time":          time.Now().Unix(),
	})
}
