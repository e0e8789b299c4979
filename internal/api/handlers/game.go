package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/internal/service"
)

type GameHandler struct {
	gameService *service.GameService
}

func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// FindOnline 온라인 매치 요청 (대기 게임 참가 또는 새 대기 게임 생성)
func (h *GameHandler) FindOnline(c *gin.Context) {
	userID := c.GetString("userId")

	result, err := h.gameService.FindOnline(c.Request.Context(), userID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	status := http.StatusOK
	if result.Waiting {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

type createFriendRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// CreateFriend 친구 초대 게임 생성
func (h *GameHandler) CreateFriend(c *gin.Context) {
	userID := c.GetString("userId")

	var req createFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameService.CreateFriend(c.Request.Context(), userID, req.Handle)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Current 현재 게임 조회
func (h *GameHandler) Current(c *gin.Context) {
	userID := c.GetString("userId")

	game, err := h.gameService.Current(c.Request.Context(), userID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

type submitRequest struct {
	ProblemIndex *int   `json:"problemIndex" binding:"required"`
	Code         string `json:"code" binding:"required"`
	Language     string `json:"language" binding:"required"`
}

// Submit 솔루션 제출
func (h *GameHandler) Submit(c *gin.Context) {
	userID := c.GetString("userId")

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameService.Submit(c.Request.Context(), userID, *req.ProblemIndex, req.Code, req.Language)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Leave 게임 이탈 (active면 상대 승리)
func (h *GameHandler) Leave(c *gin.Context) {
	userID := c.GetString("userId")

	if err := h.gameService.Leave(c.Request.Context(), userID); err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left game"})
}

// Cancel 게임 취소
func (h *GameHandler) Cancel(c *gin.Context) {
	userID := c.GetString("userId")

	if err := h.gameService.Cancel(c.Request.Context(), userID); err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game cancelled"})
}

// CancelAll 내 모든 비종결 게임 일괄 취소
func (h *GameHandler) CancelAll(c *gin.Context) {
	userID := c.GetString("userId")

	if err := h.gameService.CancelAll(c.Request.Context(), userID); err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All games cancelled"})
}

// History 완료된 게임 이력
func (h *GameHandler) History(c *gin.Context) {
	userID := c.GetString("userId")

	games, err := h.gameService.History(c.Request.Context(), userID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"games": games,
		"total": len(games),
	})
}

// respondGameError 서비스 에러를 HTTP 상태로 변환
func respondGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotVerified),
		errors.Is(err, service.ErrGameNotActive),
		errors.Is(err, service.ErrInvalidProblemIndex),
		errors.Is(err, service.ErrProblemAlreadySolved),
		errors.Is(err, service.ErrSelfInvite),
		errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrAlreadyInGame):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrFriendNotFound),
		errors.Is(err, service.ErrNoActiveGame),
		errors.Is(err, service.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrProblemPoolUnavailable),
		errors.Is(err, service.ErrJudgeUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
