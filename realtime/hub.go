package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/washline/carwash-app/models"
)

// Event types pushed over the websocket channel.
const (
	EventJobUpdate        = "job_update"
	EventJobAssigned      = "job_assigned"
	EventPaymentPending   = "payment_pending"
	EventPaymentSuccess   = "payment_success"
	EventShiftUpdate      = "shift_update"
	EventWithdrawalUpdate = "withdrawal_update"
	EventDashboardUpdate  = "dashboard_update"
	EventStaffNotif       = "staff_notification"
	EventNotification     = "notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	role   string
	userID uint
}

// Hub holds every connected client (customer, cleaner, company, admin)
// keyed by connection.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]client),
}

// RegisterClient adds a connection with its role and user id.
func RegisterClient(conn *websocket.Conn, role string, userID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = client{role: role, userID: userID}
}

// UnregisterClient releases a connection.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastJobUpdate pushes a job's new state to every client.
func BroadcastJobUpdate(job models.Job) {
	broadcast(Message{
		Event: EventJobUpdate,
		Data:  job,
	}, nil)
}

// BroadcastJobAssigned notifies cleaners and companies about an assignment.
func BroadcastJobAssigned(job models.Job) {
	broadcast(Message{
		Event: EventJobAssigned,
		Data:  job,
	}, func(cl client) bool {
		return cl.role == "cleaner" || cl.role == "company" || cl.role == "admin"
	})
}

// BroadcastPaymentPending notifies companies and admins about an unpaid job.
func BroadcastPaymentPending(job models.Job) {
	broadcast(Message{
		Event: EventPaymentPending,
		Data:  job,
	}, func(cl client) bool {
		return cl.role == "company" || cl.role == "admin"
	})
}

// BroadcastPaymentSuccess pushes a successful payment to every client.
func BroadcastPaymentSuccess(job models.Job) {
	broadcast(Message{
		Event: EventPaymentSuccess,
		Data:  job,
	}, nil)
}

// BroadcastShiftUpdate pushes a shift change to companies and admins.
func BroadcastShiftUpdate(session models.ShiftSession) {
	broadcast(Message{
		Event: EventShiftUpdate,
		Data:  session,
	}, func(cl client) bool {
		return cl.role == "company" || cl.role == "admin"
	})
}

// BroadcastWithdrawalUpdate pushes withdrawal state changes.
func BroadcastWithdrawalUpdate(w models.CompanyWithdrawal) {
	broadcast(Message{
		Event: EventWithdrawalUpdate,
		Data:  w,
	}, func(cl client) bool {
		return cl.role == "company" || cl.role == "admin"
	})
}

// BroadcastDashboardUpdate pushes fresh stats to admin dashboards.
func BroadcastDashboardUpdate(data interface{}) {
	broadcast(Message{
		Event: EventDashboardUpdate,
		Data:  data,
	}, func(cl client) bool {
		return cl.role == "admin"
	})
}

// BroadcastStaffNotification sends a plain text notice to company staff.
func BroadcastStaffNotification(message string) {
	broadcast(Message{
		Event: EventStaffNotif,
		Data:  message,
	}, func(cl client) bool {
		return cl.role == "company" || cl.role == "cleaner"
	})
}

// SendToUser delivers a message to the connections of a single user.
func SendToUser(userID uint, msg Message) {
	broadcast(msg, func(cl client) bool {
		return cl.userID == userID
	})
}

// BroadcastMessage broadcasts a generic message to all clients.
func BroadcastMessage(msg Message) {
	broadcast(msg, nil)
}

func broadcast(msg Message, filter func(client) bool) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	for conn, cl := range hub.clients {
		if filter != nil && !filter(cl) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Error sending %s to %s client: %v", msg.Event, cl.role, err)
			continue
		}
	}
}
