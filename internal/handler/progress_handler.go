package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/service"
)

type progressUpdateRequest struct {
	CurrentStreak    *int     `json:"current_streak"`
	LongestStreak    *int     `json:"longest_streak"`
	CompletionRate   *float64 `json:"completion_rate"`
	LastWeekProgress *[]bool  `json:"last_week_progress"`
}

// ListProgress 返回全部进度记录
func (a *API) ListProgress(c *gin.Context) {
	records, err := a.progress.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetProgress 返回 stack 的进度，不存在时创建
func (a *API) GetProgress(c *gin.Context) {
	record, err := a.progress.Get(c.Request.Context(), c.Param("stack_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateProgress 手动修正进度
func (a *API) UpdateProgress(c *gin.Context) {
	var req progressUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := a.progress.Update(c.Request.Context(), c.Param("stack_id"), service.ProgressPatch{
		CurrentStreak:    req.CurrentStreak,
		LongestStreak:    req.LongestStreak,
		CompletionRate:   req.CompletionRate,
		LastWeekProgress: req.LastWeekProgress,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
