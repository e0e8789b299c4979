package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/internal/models"
	"github.com/cp-duel/cp-duel-backend/pkg/codeforces"
)

type ProblemHandler struct {
	cf *codeforces.Client
}

func NewProblemHandler(cf *codeforces.Client) *ProblemHandler {
	return &ProblemHandler{cf: cf}
}

// List 문제 풀 조회 (레이팅 필터 지원)
func (h *ProblemHandler) List(c *gin.Context) {
	rating, _ := strconv.Atoi(c.Query("rating"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	pool, err := h.cf.Problems(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Problem pool unavailable"})
		return
	}

	problems := make([]models.PoolProblem, 0, limit)
	for _, p := range pool {
		if rating > 0 && p.Rating != rating {
			continue
		}
		problems = append(problems, p)
		if len(problems) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": problems,
		"total":    len(problems),
	})
}

// Get 단일 문제 조회
func (h *ProblemHandler) Get(c *gin.Context) {
	contestID, err := strconv.Atoi(c.Param("contestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contest id"})
		return
	}
	index := c.Param("index")

	pool, err := h.cf.Problems(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Problem pool unavailable"})
		return
	}

	for _, p := range pool {
		if p.ContestID == contestID && p.Index == index {
			c.JSON(http.StatusOK, gin.H{"problem": p})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Problem not found"})
}
