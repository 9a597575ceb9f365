package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/d60-Lab/autopress/internal/model"
)

var ErrInvalidPayload = errors.New("assistant payload is not a valid article")

// bodyPolicy 去掉生成 HTML 中的脚本、事件属性等活动内容
var bodyPolicy = bluemonday.UGCPolicy()

type articlePayload struct {
	Title   *string `json:"title"`
	Article *string `json:"article"`
}

func (p articlePayload) complete() bool {
	return p.Title != nil && p.Article != nil &&
		strings.TrimSpace(*p.Title) != "" && strings.TrimSpace(*p.Article) != ""
}

// ParseArticle 解析 {"title","article"}，可嵌套在语言键
// ("en" / "fr") 下一层
func ParseArticle(raw string, lang model.Language) (*model.Article, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var flat articlePayload
	if err := json.Unmarshal([]byte(cleaned), &flat); err == nil && flat.complete() {
		return flat.article()
	}

	if nested, ok := top[string(lang)]; ok {
		var p articlePayload
		if err := json.Unmarshal(nested, &p); err == nil && p.complete() {
			return p.article()
		}
	}
	return nil, fmt.Errorf("%w: missing title or article", ErrInvalidPayload)
}

func (p articlePayload) article() (*model.Article, error) {
	body := strings.TrimSpace(bodyPolicy.Sanitize(*p.Article))
	if body == "" {
		return nil, fmt.Errorf("%w: article is empty after sanitizing", ErrInvalidPayload)
	}
	return &model.Article{Title: strings.TrimSpace(*p.Title), Body: body}, nil
}

// cleanJSON 去掉 JSON 外层的 markdown 代码块
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
