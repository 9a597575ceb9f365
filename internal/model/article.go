package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Language 文章语言
type Language string

const (
	LanguageEN Language = "en"
	LanguageFR Language = "fr"
)

func (l Language) Valid() bool { return l == LanguageEN || l == LanguageFR }

// Article 生成的 {title, article} 内容，Body 为 HTML 片段
type Article struct {
	Title string `json:"title"`
	Body  string `json:"article"`
}

func (Article) GormDataType() string { return "text" }

// Value 实现 driver.Valuer；nil *Article 存为 NULL
func (a Article) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (a *Article) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*a = Article{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("article: unsupported type %T", value)
	}
	return json.Unmarshal(b, a)
}
