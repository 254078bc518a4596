package handler

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/habitstack/internal/apperr"
)

var validationOnce sync.Once

// registerValidation 让校验错误使用 JSON 字段名
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
}

func respondError(c *gin.Context, status int, message string, kind apperr.Kind, retryable bool) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":     message,
		"code":      kind,
		"retryable": retryable,
	})
}

// respondServiceError 是错误到 HTTP 状态码的唯一出口
func respondServiceError(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindStoreFailure {
		_ = c.Error(err)
	}
	respondError(c, apperr.HTTPStatus(err), apperr.PublicMessage(err), apperr.KindOf(err), apperr.IsRetryable(err))
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondServiceError(c, apperr.Invalid(bindErrorMessage(err)))
		return false
	}
	return true
}

func bindErrorMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		field := fieldPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "min":
			return field + " must be at least " + fe.Param()
		default:
			return field + " is invalid"
		}
	}

	return "invalid request body"
}

// fieldPath 去掉顶层结构体名，例如 habitCreateRequest.time -> time
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

// AbortWithError 供中间件复用同一套错误响应
func AbortWithError(c *gin.Context, err error) {
	respondServiceError(c, err)
}
