// Package source 拉取被关注账号的标准化帖子
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// Post 上游返回的一条标准化帖子
type Post struct {
	ID           string          `json:"id"`
	Author       string          `json:"author"`
	Text         string          `json:"text"`
	CreatedAt    time.Time       `json:"created_at"`
	ReplyCount   int64           `json:"reply_count"`
	RetweetCount int64           `json:"retweet_count"`
	LikeCount    int64           `json:"like_count"`
	QuoteCount   int64           `json:"quote_count"`
	ViewCount    int64           `json:"view_count"`
	IsRetweet    bool            `json:"is_retweet"`
	IsReply      bool            `json:"is_reply"`
	Media        []string        `json:"media"`
	Links        []model.Link    `json:"links"`
	Hashtags     []string        `json:"hashtags"`
	Mentions     []model.Mention `json:"mentions"`
}

// Valid 是否具备入库所需字段
func (p Post) Valid() bool {
	return strings.TrimSpace(p.ID) != "" && strings.TrimSpace(p.Text) != "" && strings.TrimSpace(p.Author) != ""
}

// Source 返回账号最新的帖子，新的在前
type Source interface {
	Fetch(ctx context.Context, account *model.Account) ([]Post, error)
}

// HTTPSource 读取 GET {base}/accounts/{user_id}/posts
type HTTPSource struct {
	baseURL    string
	apiKey     string
	retryCount int
	httpClient *http.Client
}

func NewHTTPSource(baseURL, apiKey string, timeout time.Duration, retryCount int) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retryCount <= 0 {
		retryCount = 1
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		retryCount: retryCount,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch 线性退避重试
func (s *HTTPSource) Fetch(ctx context.Context, account *model.Account) ([]Post, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryCount; attempt++ {
		posts, err := s.fetchOnce(ctx, account)
		if err == nil {
			return posts, nil
		}
		lastErr = err
		logger.Debug("source fetch failed",
			zap.String("handle", account.Handle), zap.Int("attempt", attempt+1), zap.Error(err))

		if attempt < s.retryCount-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", account.Handle, s.retryCount, lastErr)
}

func (s *HTTPSource) fetchOnce(ctx context.Context, account *model.Account) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/posts", s.baseURL, url.PathEscape(account.UserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("unmarshal posts: %w", err)
	}
	return posts, nil
}
