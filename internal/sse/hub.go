package sse

import (
	"fmt"
	"log"
	"sync"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// GlobalHub is the singleton SSE Hub instance
var GlobalHub = NewHub()

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// SendToUser 给特定用户发送事件（而非广播）
func SendToUser(userID string, event Event) {
	GlobalHub.mu.RLock()
	defer GlobalHub.mu.RUnlock()
	for _, client := range GlobalHub.clients {
		if client.UserID == userID {
			select {
			case client.Events <- event:
			default:
				log.Printf("[SSE] Client %s buffer full, skipping user event", client.ID)
			}
		}
	}
}

// PublishStageUpdate 工序变化广播（状态更新、推进、项目创建）
func PublishStageUpdate(projectID, stageName, action string) {
	data := fmt.Sprintf(`{"project_id":"%s","stage_name":"%s","action":"%s"}`, projectID, stageName, action)
	GlobalHub.Broadcast(Event{
		EventType: "stage_update",
		Data:      data,
	})
	log.Printf("[SSE] Published stage_update: project=%s stage=%s action=%s", projectID, stageName, action)
}

// PublishApprovalUpdate 审批变化广播
func PublishApprovalUpdate(projectID, approvalID, action string) {
	data := fmt.Sprintf(`{"project_id":"%s","approval_id":"%s","action":"%s"}`, projectID, approvalID, action)
	GlobalHub.Broadcast(Event{
		EventType: "approval_update",
		Data:      data,
	})
	log.Printf("[SSE] Published approval_update: project=%s approval=%s action=%s", projectID, approvalID, action)
}

// PublishNotification 给特定用户推送新通知（用于通知铃铛刷新）
func PublishNotification(userID, notificationID, notificationType string) {
	data := fmt.Sprintf(`{"notification_id":"%s","type":"%s"}`, notificationID, notificationType)
	SendToUser(userID, Event{
		EventType: "notification",
		Data:      data,
	})
	log.Printf("[SSE] Published notification to user=%s: id=%s type=%s", userID, notificationID, notificationType)
}
