package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrMissingAPIKey = errors.New("assistant API key is not configured")

// APIError 助手 API 的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assistant API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("assistant API error: %d: %s", e.StatusCode, e.Message)
}

// Run 一次助手 run 的远端状态
type Run struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LastError *RunError `json:"last_error"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message 线程消息（文本片段已拼接）
type Message struct {
	ID   string
	Role string
	Text string
}

// API 生成任务用到的 thread/run/message 接口子集
type API interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// Client 对接 OpenAI 兼容的 assistants v2 接口
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient 创建客户端；rps <= 0 时不限流
func NewClient(baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

var _ API = (*Client)(nil)

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &out); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return out.ID, nil
}

func (c *Client) PostMessage(ctx context.Context, threadID, content string) error {
	body := map[string]string{"role": "user", "content": content}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", body, nil); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	var out Run
	body := map[string]string{"assistant_id": assistantID}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", body, &out); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return out.ID, nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &out, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var out struct {
		Data []struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text *struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages?order=desc&limit=20"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Data))
	for _, d := range out.Data {
		var sb strings.Builder
		for _, part := range d.Content {
			if part.Type == "text" && part.Text != nil {
				sb.WriteString(part.Text.Value)
			}
		}
		msgs = append(msgs, Message{ID: d.ID, Role: d.Role, Text: sb.String()})
	}
	return msgs, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
