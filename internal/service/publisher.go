package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/wordpress"
	"github.com/d60-Lab/autopress/pkg/logger"
)

var (
	ErrTargetConfig  = errors.New("publish target is not configured")
	ErrPublishStatus = errors.New("publish status must be draft or publish")
)

const maxImageBytes = 20 << 20

// CMS 发布目标接口
type CMS interface {
	UploadMedia(ctx context.Context, t wordpress.Target, data []byte, filename, contentType string) (*wordpress.Media, error)
	ListCategories(ctx context.Context, t wordpress.Target) ([]wordpress.Category, error)
	CreatePost(ctx context.Context, t wordpress.Target, req wordpress.PostRequest) (*wordpress.CreatedPost, error)
}

// CategoryCache 可选，nil 表示不缓存
type CategoryCache interface {
	Get(ctx context.Context, site string) ([]wordpress.Category, bool)
	Set(ctx context.Context, site string, cats []wordpress.Category)
}

type PublishTimeouts struct {
	Download time.Duration
	Upload   time.Duration
	Category time.Duration
	Create   time.Duration
}

func (t *PublishTimeouts) defaults() {
	if t.Download <= 0 {
		t.Download = 30 * time.Second
	}
	if t.Upload <= 0 {
		t.Upload = 60 * time.Second
	}
	if t.Category <= 0 {
		t.Category = 10 * time.Second
	}
	if t.Create <= 0 {
		t.Create = 30 * time.Second
	}
}

type PublishInput struct {
	Language model.Language
	Article  model.Article
	ImageURL string
	Target   wordpress.Target
	Status   string
}

// PublishResult 待记录的结果；Success=false 时携带上游错误
type PublishResult struct {
	Success       bool   `json:"success"`
	PostID        int64  `json:"post_id,omitempty"`
	Link          string `json:"link,omitempty"`
	FeaturedMedia int64  `json:"featured_media,omitempty"`
	CategoryID    int64  `json:"category_id,omitempty"`
	Error         string `json:"error,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	Details       string `json:"details,omitempty"`
}

// Publisher 把一篇文章发到一个站点：图片 → 分类 → 文章
// 只有创建文章失败才算发布失败
type Publisher struct {
	cms        CMS
	cache      CategoryCache
	httpClient *http.Client
	timeouts   PublishTimeouts
	now        func() time.Time
}

func NewPublisher(cms CMS, cache CategoryCache, timeouts PublishTimeouts) *Publisher {
	timeouts.defaults()
	return &Publisher{
		cms:        cms,
		cache:      cache,
		httpClient: &http.Client{},
		timeouts:   timeouts,
		now:        time.Now,
	}
}

// Publish 不落库，由调用方记录结果
func (p *Publisher) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	if err := in.Target.Validate(); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrTargetConfig, in.Language, err)
	}
	status := in.Status
	if status == "" {
		status = "draft"
	}
	if status != "draft" && status != "publish" {
		return nil, fmt.Errorf("%w: %q", ErrPublishStatus, status)
	}

	ctx, span := otel.Tracer("autopress/service").Start(ctx, "publish")
	defer span.End()
	span.SetAttributes(attribute.String("lang", string(in.Language)))

	log := logger.With(zap.String("lang", string(in.Language)), zap.String("site", in.Target.URL))
	req := wordpress.PostRequest{Title: in.Article.Title, Content: in.Article.Body, Status: status}

	if in.ImageURL != "" {
		mediaID, err := p.uploadImage(ctx, in.Target, in.ImageURL)
		if err != nil {
			log.Warn("featured image skipped", zap.String("image", in.ImageURL), zap.Error(err))
		} else {
			req.FeaturedMedia = mediaID
		}
	}

	if cat, ok := p.firstCategory(ctx, in.Target, log); ok {
		req.Categories = []int64{cat}
	}

	createCtx, cancel := context.WithTimeout(ctx, p.timeouts.Create)
	defer cancel()
	created, err := p.cms.CreatePost(createCtx, in.Target, req)
	if err != nil {
		res := &PublishResult{Success: false, Error: err.Error()}
		var apiErr *wordpress.APIError
		if errors.As(err, &apiErr) {
			res.StatusCode = apiErr.StatusCode
			res.Details = apiErr.Details()
		}
		log.Error("create post failed", zap.Int("status", res.StatusCode), zap.Error(err))
		return res, nil
	}

	log.Info("article published", zap.Int64("wp_post_id", created.ID), zap.String("link", created.Link))
	return &PublishResult{
		Success:       true,
		PostID:        created.ID,
		Link:          created.Link,
		FeaturedMedia: req.FeaturedMedia,
		CategoryID:    firstOrZero(req.Categories),
	}, nil
}

func (p *Publisher) uploadImage(ctx context.Context, t wordpress.Target, imageURL string) (int64, error) {
	dlCtx, cancel := context.WithTimeout(ctx, p.timeouts.Download)
	defer cancel()
	data, contentType, err := p.download(dlCtx, imageURL)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}

	upCtx, cancelUp := context.WithTimeout(ctx, p.timeouts.Upload)
	defer cancelUp()
	media, err := p.cms.UploadMedia(upCtx, t, data, imageFilename(imageURL, contentType, p.now()), contentType)
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	return media.ID, nil
}

func (p *Publisher) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// firstCategory 尽力而为，任何失败都视为无分类
func (p *Publisher) firstCategory(ctx context.Context, t wordpress.Target, log *zap.Logger) (int64, bool) {
	site := t.APIBase()
	if p.cache != nil {
		if cats, ok := p.cache.Get(ctx, site); ok {
			if len(cats) == 0 {
				return 0, false
			}
			return cats[0].ID, true
		}
	}

	catCtx, cancel := context.WithTimeout(ctx, p.timeouts.Category)
	defer cancel()
	cats, err := p.cms.ListCategories(catCtx, t)
	if err != nil {
		log.Warn("category lookup skipped", zap.Error(err))
		return 0, false
	}
	if p.cache != nil {
		p.cache.Set(ctx, site, cats)
	}
	if len(cats) == 0 {
		return 0, false
	}
	return cats[0].ID, true
}

var preferredExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageFilename URL 文件名带扩展名时沿用，否则
// 按 content type 生成 image-<unix>.<ext>
func imageFilename(rawURL, contentType string, now time.Time) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && path.Ext(base) != "" {
			return base
		}
	}
	ext, ok := preferredExt[strings.ToLower(contentType)]
	if !ok {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		} else {
			ext = ".jpg"
		}
	}
	return fmt.Sprintf("image-%d%s", now.Unix(), ext)
}

func firstOrZero(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}
