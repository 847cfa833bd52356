package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/overhead/internal/display"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/pkg/logger"
)

// Message types exchanged with panel clients
const (
	MessageTypePanel        = "panel"         // Server pushes the panel on screen
	MessageTypePanelRequest = "panel_request" // Client asks for the current panel
	MessageTypeStatus       = "status"        // Server pushes orchestrator status
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendBuffer   = 64
	broadcastCap = 16
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler defines the interface for handling incoming WebSocket messages
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
}

// Server is the WebSocket hub. It doubles as a display sink that pushes every panel to clients.
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	upgrader       websocket.Upgrader
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler

	lastMu    sync.RWMutex
	lastPanel *Message
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger, allowedOrigins []string) *Server {
	s := &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, broadcastCap),
		logger:     log.Named("web-socket"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	s.messageHandler = s
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// SetMessageHandler replaces the handler for incoming WebSocket messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run starts the WebSocket hub and blocks until stop is closed
func (s *Server) Run(stop <-chan struct{}) {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case <-stop:
			s.closeAll()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

			if last := s.LastPanel(); last != nil {
				client.SendMessage(last)
			}

		case client := <-s.unregister:
			s.mu.Lock()
			s.remove(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			clientsToRemove := make([]*Client, 0)
			for client := range s.clients {
				if !client.SendMessage(message) {
					clientsToRemove = append(clientsToRemove, client)
				}
			}
			s.mu.RUnlock()

			if len(clientsToRemove) > 0 {
				s.mu.Lock()
				for _, client := range clientsToRemove {
					s.remove(client)
				}
				s.mu.Unlock()
			}
		}
	}
}

// remove must be called with s.mu held
func (s *Server) remove(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		s.remove(client)
	}
}

// HandleConnection upgrades the request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("WebSocket client connected", logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
		server:    s,
		closeChan: make(chan struct{}),
	}

	s.register <- client

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for all connected clients without blocking
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message", logger.String("message_type", message.Type))
	}
}

// LastPanel returns the most recent panel message, or nil before the first render
func (s *Server) LastPanel() *Message {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastPanel
}

// Render implements display.Renderer
func (s *Server) Render(f flight.Flight, p display.Panel) {
	s.pushPanel(p, &f)
}

// RenderNoData implements display.Renderer
func (s *Server) RenderNoData(p display.Panel) {
	s.pushPanel(p, nil)
}

// RenderSplash implements display.Renderer
func (s *Server) RenderSplash(p display.Panel) {
	s.pushPanel(p, nil)
}

func (s *Server) pushPanel(p display.Panel, f *flight.Flight) {
	data := map[string]any{"panel": p}
	if f != nil {
		data["flight"] = *f
	}
	msg := &Message{Type: MessageTypePanel, Data: data}

	s.lastMu.Lock()
	s.lastPanel = msg
	s.lastMu.Unlock()

	s.Broadcast(msg)
}

// HandleMessage answers panel requests; other message types are ignored
func (s *Server) HandleMessage(client *Client, messageType string, _ map[string]any) error {
	switch messageType {
	case MessageTypePanelRequest:
		if last := s.LastPanel(); last != nil {
			client.SendMessage(last)
		}
	default:
		s.logger.Debug("Unhandled message type", logger.String("type", messageType))
	}
	return nil
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		if c.server.messageHandler != nil {
			if err := c.server.messageHandler.HandleMessage(c, message.Type, message.Data); err != nil {
				c.server.logger.Error("Failed to handle WebSocket message",
					logger.Error(err),
					logger.String("type", message.Type))
			}
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Debug("WebSocket write failed", logger.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.closeChan)
	c.conn.Close()
}

// SendMessage sends a message to this client; false means it is closed or too slow
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}
