package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ListState JSON 列表列的解析结果
type ListState uint8

const (
	ListAbsent ListState = iota // NULL, empty or "null"
	ListParsed                  // valid JSON array (possibly double encoded)
	ListRaw                     // non-empty text that is not a JSON array
)

// JSONList 以 text 列存储的有序列表。读取时一次性解析为三态：Absent / Parsed / Raw。
type JSONList[T any] struct {
	State ListState
	Items []T
	Raw   string
}

// NewJSONList 构造已解析列表；nil 或空切片视为缺失
func NewJSONList[T any](items []T) JSONList[T] {
	if len(items) == 0 {
		return JSONList[T]{}
	}
	return JSONList[T]{State: ListParsed, Items: items}
}

// RawJSONList 原样保留无法解析的值
func RawJSONList[T any](raw string) JSONList[T] {
	if strings.TrimSpace(raw) == "" {
		return JSONList[T]{}
	}
	return JSONList[T]{State: ListRaw, Raw: raw}
}

// NonEmpty 列表是否有内容，Raw 文本也算
func (l JSONList[T]) NonEmpty() bool {
	switch l.State {
	case ListParsed:
		return len(l.Items) > 0
	case ListRaw:
		return strings.TrimSpace(l.Raw) != ""
	default:
		return false
	}
}

func (JSONList[T]) GormDataType() string { return "text" }

// Scan 实现 sql.Scanner
func (l *JSONList[T]) Scan(value interface{}) error {
	var text string
	switch v := value.(type) {
	case nil:
		*l = JSONList[T]{}
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return fmt.Errorf("jsonlist: unsupported type %T", value)
	}
	*l = parseJSONList[T](text)
	return nil
}

func parseJSONList[T any](text string) JSONList[T] {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "null" {
		return JSONList[T]{}
	}

	var items []T
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return JSONList[T]{State: ListParsed, Items: items}
	}

	// 兼容被二次编码的值："[\"a\",\"b\"]"
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &items); err == nil {
			return JSONList[T]{State: ListParsed, Items: items}
		}
		return RawJSONList[T](inner)
	}
	return JSONList[T]{State: ListRaw, Raw: text}
}

// Value 实现 driver.Valuer
func (l JSONList[T]) Value() (driver.Value, error) {
	switch l.State {
	case ListParsed:
		if l.Items == nil {
			return "[]", nil
		}
		b, err := json.Marshal(l.Items)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case ListRaw:
		return l.Raw, nil
	default:
		return nil, nil
	}
}

func (l JSONList[T]) MarshalJSON() ([]byte, error) {
	switch l.State {
	case ListParsed:
		if l.Items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(l.Items)
	case ListRaw:
		return json.Marshal(l.Raw)
	default:
		return []byte("null"), nil
	}
}

func (l *JSONList[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = JSONList[T]{}
		return nil
	}
	*l = parseJSONList[T](string(data))
	return nil
}
