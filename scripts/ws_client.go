// Package main runs a demo WebSocket client for the admin order feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create an order
	body := []byte(`{
		"customer_name": "Maria",
		"customer_contact": "11988887777",
		"payment_method": "pix",
		"total_amount": 25.5,
		"items": [{"product_id": "p1", "name": "Trufa de maracujá", "price": 8.5, "quantity": 3}]
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var order struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		log.Fatal(err)
	}
	log.Printf("Order ID: %s", order.ID)

	// Connect the admin feed
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws/orders"}
	hdr := http.Header{}
	hdr.Set("X-User-Id", "u_demo")
	hdr.Set("X-Admin", "true")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{}) // empty payload subscribes to every order
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a status event via the admin PATCH
	time.Sleep(500 * time.Millisecond)
	patch, _ := http.NewRequest(http.MethodPatch, base+"/v1/admin/orders/"+order.ID, bytes.NewReader([]byte(`{"status":"preparing"}`)))
	patch.Header.Set("Content-Type", "application/json")
	patch.Header.Set("X-User-Id", "u_demo")
	patch.Header.Set("X-Admin", "true")
	_, _ = http.DefaultClient.Do(patch)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
