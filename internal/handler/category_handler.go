package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/service"
)

type categoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"required"`
	Icon  string `json:"icon" binding:"required"`
}

// ListCategories 返回全部分类
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.categories.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// CreateCategory 新建分类
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := a.categories.Create(c.Request.Context(), service.CategoryInput{
		Name:  req.Name,
		Color: req.Color,
		Icon:  req.Icon,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}
