package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/muling-engine/pkg/models"
)

// Ring Alert Stream
//
// Dashboards subscribe once over a websocket and then receive one message
// per fraud ring as analyses complete. The hub deals only in typed alerts —
// the single payload this engine ever pushes — so handlers queue rings, not
// wire frames.

// RingAlert is the message delivered to every subscriber.
type RingAlert struct {
	Type       string           `json:"type"` // always "fraud_ring_alert"
	AnalysisID string           `json:"analysis_id"`
	Ring       models.FraudRing `json:"ring"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard only
	},
}

// Hub owns the subscriber set and the alert queue.
type Hub struct {
	mu     sync.Mutex
	subs   map[*websocket.Conn]bool
	alerts chan RingAlert
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*websocket.Conn]bool),
		alerts: make(chan RingAlert, 256),
	}
}

// Run delivers queued alerts until the queue is closed. A subscriber that
// cannot take a write within five seconds is dropped; one stalled dashboard
// must not hold back the rest.
func (h *Hub) Run() {
	for alert := range h.alerts {
		h.mu.Lock()
		for conn := range h.subs {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(alert); err != nil {
				log.Printf("Dropping alert subscriber: %v", err)
				conn.Close()
				delete(h.subs, conn)
			}
		}
		h.mu.Unlock()
	}
}

// PublishRings queues one alert per ring of a completed analysis.
func (h *Hub) PublishRings(analysisID string, rings []models.FraudRing) {
	for _, ring := range rings {
		h.alerts <- RingAlert{
			Type:       "fraud_ring_alert",
			AnalysisID: analysisID,
			Ring:       ring,
		}
		log.Printf("[ALERT] %s ring detected: %s (%d members, risk %d)",
			ring.PatternType, ring.RingID, len(ring.MemberAccounts), ring.RiskScore)
	}
}

// Subscribe upgrades the request and parks the connection in the
// subscriber set until the peer goes away.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.add(conn)

	// Subscribers never send anything meaningful; the read loop exists to
	// notice the close handshake and reap the connection.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("Alert subscriber read error: %v", err)
				}
				return
			}
		}
	}()
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.subs[conn] = true
	total := len(h.subs)
	h.mu.Unlock()
	log.Printf("Alert subscriber connected (%d active)", total)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.subs, conn)
	remaining := len(h.subs)
	h.mu.Unlock()
	conn.Close()
	log.Printf("Alert subscriber disconnected (%d active)", remaining)
}
