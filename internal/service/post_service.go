package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
)

var ErrAlreadyPublished = errors.New("article already published")

// PostService 人工操作：查看、评估、生成、发布
type PostService interface {
	Get(ctx context.Context, id uint) (*model.Post, error)
	Evaluate(ctx context.Context, id uint) (*Decision, error)
	Generate(ctx context.Context, id uint, mode assistant.Mode, force bool) (*model.Post, error)
	Publish(ctx context.Context, id uint, lang model.Language, status string, force bool) (*PublishResult, error)
	SetBotEnabled(ctx context.Context, enabled bool) error
}

type postService struct {
	posts    repository.PostRepository
	settings repository.SettingRepository
	auto     *AutoPublisher
}

func NewPostService(posts repository.PostRepository, settings repository.SettingRepository, auto *AutoPublisher) PostService {
	return &postService{posts: posts, settings: settings, auto: auto}
}

func (s *postService) Get(ctx context.Context, id uint) (*model.Post, error) {
	return s.posts.Get(ctx, id)
}

func (s *postService) Evaluate(ctx context.Context, id uint) (*Decision, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := LoadSettings(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	d := Evaluate(post, settings)
	return &d, nil
}

// Generate 跳过判定；force 时重新生成已有文章
func (s *postService) Generate(ctx context.Context, id uint, mode assistant.Mode, force bool) (*model.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.ArticleGenerated && !force {
		return nil, repository.ErrAlreadyGenerated
	}
	if _, err := s.auto.GenerateArticles(ctx, post, mode, force); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) Publish(ctx context.Context, id uint, lang model.Language, status string, force bool) (*PublishResult, error) {
	if !lang.Valid() {
		return nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedLanguage, lang)
	}
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.ArticleFor(lang) == nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrArticleMissing, lang)
	}
	if post.PublishedFor(lang) && !force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPublished, lang)
	}

	settings, err := LoadSettings(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = settings.PublishStatus
	}
	// incomplete targets are rejected by the publisher with ErrTargetConfig
	target := settings.Targets[lang]
	return s.auto.PublishArticle(ctx, post, lang, PublishInput{Target: target, Status: status})
}

func (s *postService) SetBotEnabled(ctx context.Context, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	return s.settings.Set(ctx, model.SettingBotEnabled, v)
}
