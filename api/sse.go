package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
)

// sseClient represents a connected SSE client
type sseClient struct {
	id       string
	messages chan sseMessage
}

type sseMessage struct {
	event string
	data  []byte
}

// Hub fans out server-sent events to all connected clients. It implements
// worker.Notifier so refresh completions reach open map pages.
type Hub struct {
	clients    map[string]*sseClient
	register   chan *sseClient
	unregister chan *sseClient
	broadcast  chan sseMessage
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates and starts an SSE hub.
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*sseClient),
		register:   make(chan *sseClient),
		unregister: make(chan *sseClient),
		broadcast:  make(chan sseMessage, 256),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client connected", "client", client.id, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.messages)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("SSE client disconnected", "client", client.id, "total", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.messages <- message:
				default:
					// Client's channel is full, skip this message
				}
			}
			h.mu.RUnlock()
		}
	}
}

// DatasetRefreshed broadcasts a dataset_refreshed event to all clients.
func (h *Hub) DatasetRefreshed(version string, routeCount, airportCount int) {
	data, err := json.Marshal(gin.H{
		"version":       version,
		"route_count":   routeCount,
		"airport_count": airportCount,
	})
	if err != nil {
		return
	}
	h.broadcast <- sseMessage{event: "dataset_refreshed", data: data}
}

func writeSSEMessage(w io.Writer, msg sseMessage) error {
	if msg.event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", msg.event); err != nil {
			return err
		}
	}

	// SSE allows multiple `data:` lines; split to be safe.
	data := strings.TrimRight(string(msg.data), "\n")
	if data == "" {
		_, err := io.WriteString(w, "data: \n\n")
		return err
	}

	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// GetEvents returns the SSE stream handler.
func GetEvents(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

		client := &sseClient{
			id:       fmt.Sprintf("client-%d", time.Now().UnixNano()),
			messages: make(chan sseMessage, 10),
		}

		h.register <- client
		defer func() {
			h.unregister <- client
		}()

		c.Status(http.StatusOK)
		c.Writer.Flush()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-keepalive.C:
				// Comment line keeps proxies from closing idle streams.
				if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
					return false
				}
				return true
			case msg, ok := <-client.messages:
				if !ok {
					return false
				}
				if err := writeSSEMessage(w, msg); err != nil {
					return false
				}
				return true
			}
		})
	}
}
