package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/service"
)

type stackCreateRequest struct {
	Name   string          `json:"name" binding:"required"`
	Habits []db.StackEntry `json:"habits" binding:"required,dive"`
}

type stackUpdateRequest struct {
	Name          *string          `json:"name"`
	Habits        *[]db.StackEntry `json:"habits" binding:"omitempty,dive"`
	LastCompleted *time.Time       `json:"lastCompleted"`
}

// HabitID 允许为空字符串，只有缺省时才拒绝
type toggleRequest struct {
	StackID string  `json:"stack_id" binding:"required"`
	HabitID *string `json:"habit_id" binding:"required"`
}

// ListStacks 返回全部 stack，支持 search 过滤
func (a *API) ListStacks(c *gin.Context) {
	stacks, err := a.stacks.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stacks)
}

// GetStack 返回单个 stack
func (a *API) GetStack(c *gin.Context) {
	stack, err := a.stacks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stack)
}

// CreateStack 新建 stack 并初始化进度
func (a *API) CreateStack(c *gin.Context) {
	var req stackCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	stack, err := a.stacks.Create(c.Request.Context(), service.StackInput{
		Name:   req.Name,
		Habits: req.Habits,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stack)
}

// UpdateStack 部分更新 stack
func (a *API) UpdateStack(c *gin.Context) {
	var req stackUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	stack, err := a.stacks.Update(c.Request.Context(), c.Param("id"), service.StackPatch{
		Name:          req.Name,
		Habits:        req.Habits,
		LastCompleted: req.LastCompleted,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stack)
}

// DeleteStack 删除 stack 及其进度
func (a *API) DeleteStack(c *gin.Context) {
	if err := a.stacks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Stack deleted successfully")
}

// ToggleHabit 切换 stack 中习惯的完成状态
func (a *API) ToggleHabit(c *gin.Context) {
	var req toggleRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := a.stacks.Toggle(c.Request.Context(), req.StackID, *req.HabitID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, "Habit completion toggled successfully")
}
