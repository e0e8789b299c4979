package websocket

import (
	"sync"

	"github.com/cp-duel/cp-duel-backend/pkg/logger"
)

// Hub WebSocket 연결과 게임 룸 관리
// 게임별 룸으로 상태 변경 알림과 채팅을 중계
type Hub struct {
	// 사용자별 연결 (userID -> *Client)
	clients map[string]*Client
	// 게임 룸 (gameID -> userID -> *Client)
	rooms map[string]map[string]*Client
	mu    sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// Message 송수신 메시지 포맷
type Message struct {
	// GameID가 있으면 해당 룸으로, UserID가 있으면 해당 사용자에게 전송
	GameID  string      `json:"gameId,omitempty"`
	UserID  string      `json:"-"`
	Sender  string      `json:"sender,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// 프레즌스 이벤트 (룸 입장/이탈 시 상대에게 통지)
const (
	eventOpponentConnected    = "opponent_reconnected"
	eventOpponentDisconnected = "opponent_disconnected"
)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run Hub 이벤트 루프
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.dispatch(message)
		}
	}
}

// NotifyGame 게임 룸 전체에 이벤트 전송 (논블로킹)
func (h *Hub) NotifyGame(gameID, event string, payload interface{}) {
	h.send(&Message{GameID: gameID, Type: event, Payload: payload})
}

// NotifyUser 특정 사용자에게 이벤트 전송 (논블로킹)
func (h *Hub) NotifyUser(userID, event string, payload interface{}) {
	h.send(&Message{UserID: userID, Type: event, Payload: payload})
}

// send 브로드캐스트 큐가 가득 차면 메시지를 버림
// 알림 실패가 게임 상태 전이를 막으면 안 됨
func (h *Hub) send(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Notification queue full, dropping message", "type", message.Type)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 같은 사용자의 기존 연결은 교체
	if old, exists := h.clients[client.userID]; exists {
		h.removeFromRoomLocked(old)
		close(old.send)
	}

	h.clients[client.userID] = client

	logger.Info("WebSocket client connected", "userId", client.userID, "total", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.userID]; !exists || current != client {
		return
	}

	h.removeFromRoomLocked(client)
	delete(h.clients, client.userID)
	close(client.send)

	logger.Info("WebSocket client disconnected", "userId", client.userID, "total", len(h.clients))
}

// joinRoom 게임 룸 입장, 기존 멤버에게 재접속 통지
func (h *Hub) joinRoom(client *Client, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)

	room := h.rooms[gameID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[gameID] = room
	}

	for _, member := range room {
		h.deliverLocked(member, &Message{
			GameID: gameID,
			Type:   eventOpponentConnected,
			Sender: client.userID,
		})
	}

	room[client.userID] = client
	client.gameID = gameID
}

// leaveRoom 게임 룸 퇴장
func (h *Hub) leaveRoom(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)
}

// removeFromRoomLocked 룸에서 제거하고 남은 멤버에게 이탈 통지 (호출자가 잠금 보유)
func (h *Hub) removeFromRoomLocked(client *Client) {
	if client.gameID == "" {
		return
	}

	gameID := client.gameID
	client.gameID = ""

	room := h.rooms[gameID]
	if room == nil {
		return
	}

	delete(room, client.userID)
	if len(room) == 0 {
		delete(h.rooms, gameID)
		return
	}

	for _, member := range room {
		h.deliverLocked(member, &Message{
			GameID: gameID,
			Type:   eventOpponentDisconnected,
			Sender: client.userID,
		})
	}
}

// relay 클라이언트 발신 메시지(채팅, 타이핑)를 같은 룸의 상대에게 전달
func (h *Hub) relay(sender *Client, msgType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sender.gameID == "" {
		return
	}

	for userID, member := range h.rooms[sender.gameID] {
		if userID == sender.userID {
			continue
		}
		h.deliverLocked(member, &Message{
			GameID:  sender.gameID,
			Sender:  sender.userID,
			Type:    msgType,
			Payload: payload,
		})
	}
}

func (h *Hub) dispatch(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.GameID != "" {
		for _, member := range h.rooms[message.GameID] {
			h.deliverLocked(member, message)
		}
		return
	}

	if client, exists := h.clients[message.UserID]; exists {
		h.deliverLocked(client, message)
	}
}

// deliverLocked 클라이언트 송신 큐에 넣기, 가득 차면 버림 (호출자가 잠금 보유)
func (h *Hub) deliverLocked(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		logger.Warn("Client send channel full, dropping message",
			"userId", client.userID, "type", message.Type)
	}
}
