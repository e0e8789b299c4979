package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/pkg/codeforces"
)

type ContestHandler struct {
	cf *codeforces.Client
}

func NewContestHandler(cf *codeforces.Client) *ContestHandler {
	return &ContestHandler{cf: cf}
}

const contestListLimit = 20

// Upcoming 예정된 콘테스트 목록
func (h *ContestHandler) Upcoming(c *gin.Context) {
	h.listByPhase(c, "BEFORE")
}

// Recent 종료된 최근 콘테스트 목록
func (h *ContestHandler) Recent(c *gin.Context) {
	h.listByPhase(c, "FINISHED")
}

func (h *ContestHandler) listByPhase(c *gin.Context, phase string) {
	contests, err := h.cf.Contests(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Contest list unavailable"})
		return
	}

	filtered := make([]codeforces.Contest, 0, contestListLimit)
	for _, contest := range contests {
		if contest.Phase != phase {
			continue
		}
		filtered = append(filtered, contest)
		if len(filtered) >= contestListLimit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": filtered,
		"total":    len(filtered),
	})
}
