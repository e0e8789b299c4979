package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me 내 정보 조회
func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetString("userId")

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// VerifyHandle Codeforces 핸들 검증
func (h *UserHandler) VerifyHandle(c *gin.Context) {
	userID := c.GetString("userId")

	var req models.VerifyHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.VerifyHandle(c.Request.Context(), userID, req.Handle)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHandleTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Handle already verified by another user"})
		case errors.Is(err, service.ErrHandleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Codeforces handle not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify handle"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Stats 사용자 통계 조회
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.userService.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Leaderboard 레이팅 순위 조회
func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	users, err := h.userService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": len(users),
	})
}
