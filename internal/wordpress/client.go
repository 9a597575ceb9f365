// Package wordpress WordPress REST API (wp/v2) 的精简客户端
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Target 一个发布站点及其 basic auth 凭据
type Target struct {
	URL      string `validate:"required,url"`
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Validate 检查地址与凭据是否齐全
func (t Target) Validate() error {
	return validate.Struct(t)
}

// NormalizeURL 为缺少 scheme 的站点地址补上 https://
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

// APIBase 返回站点的 wp/v2 根路径
func (t Target) APIBase() string {
	base := strings.TrimRight(t.URL, "/")
	if strings.Contains(base, "/wp-json") {
		if strings.HasSuffix(base, "/wp-json") {
			return base + "/wp/v2"
		}
		return base
	}
	return base + "/wp-json/wp/v2"
}

// APIError 失败调用的上游状态码与响应体
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("WordPress API error: %d", e.StatusCode)
}

// Details 返回最有用的上游错误说明
func (e *APIError) Details() string {
	if e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return e.Body
}

type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// PostRequest POST /posts 的请求体
type PostRequest struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Status        string  `json:"status"`
	FeaturedMedia int64   `json:"featured_media,omitempty"`
	Categories    []int64 `json:"categories,omitempty"`
}

type CreatedPost struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

type Client struct {
	httpClient *http.Client
}

// NewClient 创建客户端；单次调用的超时由 context 控制
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{httpClient: httpClient}
}

// UploadMedia 以 multipart 表单上传文件，WordPress 返回 201
func (c *Client) UploadMedia(ctx context.Context, t Target, data []byte, filename, contentType string) (*Media, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var media Media
	if err := c.do(ctx, t, http.MethodPost, "/media", w.FormDataContentType(), &buf, http.StatusCreated, &media); err != nil {
		return nil, err
	}
	return &media, nil
}

func (c *Client) ListCategories(ctx context.Context, t Target) ([]Category, error) {
	var cats []Category
	if err := c.do(ctx, t, http.MethodGet, "/categories?per_page=100&orderby=id&order=asc", "", nil, 0, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) CreatePost(ctx context.Context, t Target, req PostRequest) (*CreatedPost, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var created CreatedPost
	if err := c.do(ctx, t, http.MethodPost, "/posts", "application/json", bytes.NewReader(body), http.StatusCreated, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do 执行请求；want == 0 时接受任意 2xx
func (c *Client) do(ctx context.Context, t Target, method, path, contentType string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, t.APIBase()+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
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

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if want != 0 {
		ok = resp.StatusCode == want
	}
	if !ok {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Code, envelope.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
