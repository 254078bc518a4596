package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainTextPolicy 去除全部 HTML 标签，只保留文本
var plainTextPolicy = bluemonday.StrictPolicy()

// cleanText 去掉标记与首尾空白；bluemonday 会转义实体，这里还原成原字符
func cleanText(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(input)))
}

func cleanTextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := cleanText(*input)
	return &cleaned
}
