package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	OrderID string `json:"orderId,omitempty"` // empty subscribes to every order
}

// OrdersWSHandler handles /ws/orders, the live feed the admin dashboard
// watches. Clients send connection_init, then subscribe with an optional
// orderId; each order event arrives as a "next" message tagged with the
// subscription id.
func (s *Server) OrdersWSHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin access required", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		topic string
		ch    chan SSEEvent
	}
	subs := map[string]sub{}
	defer func() {
		for _, su := range subs {
			s.Broker.Unsubscribe(su.topic, su.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	write := func(v any) error { return conn.WriteJSON(v) }

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			topic := pl.OrderID
			if topic == "" {
				topic = FeedAll
			}
			ch := s.Broker.Subscribe(topic)
			subs[msg.ID] = sub{topic: topic, ch: ch}
			go func(id string, c chan SSEEvent) {
				for evt := range c {
					data, _ := json.Marshal(map[string]any{"event": evt.Type, "data": evt.Data})
					if err := write(wsMessage{Type: "next", ID: id, Payload: data}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if su, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(su.topic, su.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
