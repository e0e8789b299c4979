package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/internal/websocket"
	jwtutil "github.com/cp-duel/cp-duel-backend/pkg/jwt"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub        *websocket.Hub
	jwtManager *jwtutil.JWTManager
}

func NewWebSocketHandler(hub *websocket.Hub, jwtManager *jwtutil.JWTManager) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jwtManager: jwtManager,
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트
// 브라우저 WebSocket은 헤더를 못 붙이므로 token 쿼리 파라미터로 인증
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	websocket.ServeWs(h.hub, c.Writer, c.Request, claims.UserID)
}
