package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"hotelpos-billing-services/internal/auth"
	"hotelpos-billing-services/internal/counter"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

type subscriber interface {
	writeJSON(value any) error
	close() error
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsClient) close() error {
	return c.conn.Close()
}

// Hub pushes issued KOT numbers to kitchen displays subscribed to a branch.
type Hub struct {
	Logger    *zap.Logger
	JWTSecret string
	Heartbeat time.Duration

	mu   sync.RWMutex
	subs map[string]map[subscriber]struct{}
}

func NewHub(logger *zap.Logger, jwtSecret string, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		Logger:    logger,
		JWTSecret: jwtSecret,
		Heartbeat: heartbeat,
		subs:      make(map[string]map[subscriber]struct{}),
	}
}

func (h *Hub) subscribe(branchID string, client subscriber) (unsubscribe func()) {
	key := strings.TrimSpace(branchID)
	if key == "" {
		return func() {}
	}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[subscriber]struct{})
	}
	h.subs[key][client] = struct{}{}
	h.mu.Unlock()

	return func() { h.drop(key, client) }
}

func (h *Hub) drop(key string, client subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.subs[key]
	if clients == nil {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.subs, key)
	}
}

// Subscribers reports how many displays currently follow a branch.
func (h *Hub) Subscribers(branchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[strings.TrimSpace(branchID)])
}

func (h *Hub) broadcast(branchID string, message any) {
	key := strings.TrimSpace(branchID)

	h.mu.RLock()
	clients := make([]subscriber, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.close()
			h.drop(key, c)
		}
	}
}

// Publish forwards KOT events to the branch's kitchen displays. Other events
// are ignored. Delivery is best effort so it never returns an error.
func (h *Hub) Publish(ctx context.Context, event counter.Event) error {
	if event.Type != counter.EventKOTIssued {
		return nil
	}
	h.broadcast(event.BranchID, map[string]any{
		"type": "kot.issued",
		"data": map[string]any{
			"branchId":   event.BranchID,
			"date":       event.Date,
			"kotNumber":  event.Number,
			"value":      event.Value,
			"occurredAt": event.OccurredAt,
		},
	})
	return nil
}

// KitchenKOTWS streams KOT numbers for the branch in the route. The staff
// token is passed as a query parameter because browsers cannot set headers on
// upgrades.
func (h *Hub) KitchenKOTWS(w http.ResponseWriter, r *http.Request) {
	h.serveKitchen(w, r, strings.TrimSpace(chi.URLParam(r, "branchId")))
}

func (h *Hub) serveKitchen(w http.ResponseWriter, r *http.Request, branchID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if bearer := auth.ParseBearerToken(token); bearer != "" {
		token = bearer
	}
	claims, err := auth.VerifyAccessToken(token, h.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	if !auth.HasPermission(claims.Role, auth.PermKitchenFeed) || !claims.CanAccessBranch(branchID) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "forbidden"})
		return
	}

	client := &wsClient{conn: conn}
	unsubscribe := h.subscribe(branchID, client)
	defer unsubscribe()

	h.Logger.Info("kitchen display connected", zap.String("branchId", branchID), zap.String("userId", claims.UserID))
	_ = client.writeJSON(map[string]any{"type": "kot.subscribed", "branchId": branchID})

	pongWait := h.Heartbeat * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}
