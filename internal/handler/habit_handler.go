package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/service"
)

type habitCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Time        *int   `json:"time" binding:"required,min=0"`
	Description string `json:"description"`
}

type habitUpdateRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Time        *int    `json:"time" binding:"omitempty,min=0"`
	Description *string `json:"description"`
}

// ListHabits 返回习惯列表，支持 category 与 search 过滤
func (a *API) ListHabits(c *gin.Context) {
	habits, err := a.habits.List(c.Request.Context(), service.HabitFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, habits)
}

// GetHabit 返回单个习惯
func (a *API) GetHabit(c *gin.Context) {
	habit, err := a.habits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

// CreateHabit 新建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var req habitCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	habit, err := a.habits.Create(c.Request.Context(), service.HabitInput{
		Name:        req.Name,
		Category:    req.Category,
		Time:        *req.Time,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

// UpdateHabit 部分更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	var req habitUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	habit, err := a.habits.Update(c.Request.Context(), c.Param("id"), service.HabitPatch{
		Name:        req.Name,
		Category:    req.Category,
		Time:        req.Time,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

// DeleteHabit 删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	if err := a.habits.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Habit deleted successfully")
}
