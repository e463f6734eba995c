package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"barpos-backend/models"
)

// Event types pushed to connected staff clients.
const (
	EventOrderUpdate   = "order_update"
	EventTableUpdate   = "table_update"
	EventGuestUpdate   = "guest_update"
	EventPaymentUpdate = "payment_update"
	EventInvoiceUpdate = "invoice_generated"
	EventStaffNotif    = "staff_notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds all connected staff clients (cashier, waiter, kitchen, admin).
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]string),
}

func RegisterClient(conn *websocket.Conn, role string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = role
}

func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

func BroadcastOrderUpdate(order models.Order) {
	broadcast(Message{Event: EventOrderUpdate, Data: order})
}

func BroadcastTableUpdate(table models.Table) {
	broadcast(Message{Event: EventTableUpdate, Data: table})
}

func BroadcastGuestUpdate(guest models.Guest) {
	broadcast(Message{Event: EventGuestUpdate, Data: guest})
}

func BroadcastPaymentUpdate(payment models.Payment) {
	broadcast(Message{Event: EventPaymentUpdate, Data: payment})
}

func BroadcastInvoiceGenerated(invoice models.Invoice) {
	broadcast(Message{Event: EventInvoiceUpdate, Data: invoice})
}

func BroadcastStaffNotification(message string) {
	broadcast(Message{Event: EventStaffNotif, Data: message})
}

func broadcast(msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("events: marshal broadcast: %v", err)
		return
	}

	for conn := range hub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}
