package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// ErrClaimed 生成权已被其他 worker 占用
var ErrClaimed = errors.New("generation already in progress")

// DefaultClaimLease 覆盖两次完整的助手 run
const DefaultClaimLease = 10 * time.Minute

type ArticleGenerator interface {
	Generate(ctx context.Context, req assistant.Request) (*assistant.Articles, error)
}

type ArticlePublisher interface {
	Publish(ctx context.Context, in PublishInput) (*PublishResult, error)
}

// Outcome 单个帖子的处理结果
type Outcome struct {
	Decision        Decision                          `json:"decision"`
	Generated       []model.Language                  `json:"generated,omitempty"`
	Published       map[model.Language]*PublishResult `json:"published,omitempty"`
	PublishFailures int                               `json:"publish_failures"`
	Skipped         map[model.Language]string         `json:"skipped,omitempty"`
}

// AutoPublisher 评估 → 占用 → 生成 → 存储 → 发布 → 记录
type AutoPublisher struct {
	posts     repository.PostRepository
	generator ArticleGenerator
	publisher ArticlePublisher
	lease     time.Duration
}

func NewAutoPublisher(posts repository.PostRepository, generator ArticleGenerator, publisher ArticlePublisher) *AutoPublisher {
	return &AutoPublisher{posts: posts, generator: generator, publisher: publisher, lease: DefaultClaimLease}
}

// Process 处理新入库的帖子；返回 nil 且 Decision.Proceed=false
// 表示未通过判定
func (a *AutoPublisher) Process(ctx context.Context, post *model.Post, s Settings) (*Outcome, error) {
	ctx, span := otel.Tracer("autopress/service").Start(ctx, "autopublish.process")
	defer span.End()
	span.SetAttributes(attribute.String("post_id", post.PostID))

	log := logger.With(zap.String("post_id", post.PostID), zap.Uint("id", post.ID))
	out := &Outcome{Decision: Evaluate(post, s)}
	if !out.Decision.Proceed {
		log.Info("auto-publish skipped", zap.String("reason", out.Decision.Reason))
		return out, nil
	}
	log.Info("auto-publish triggered", zap.String("reason", out.Decision.Reason), zap.String("mode", string(s.Mode)))

	articles, err := a.GenerateArticles(ctx, post, s.Mode, false)
	if err != nil {
		if errors.Is(err, ErrClaimed) || errors.Is(err, repository.ErrAlreadyGenerated) {
			log.Info("generation skipped", zap.Error(err))
			out.Decision.Proceed = false
			out.Decision.Reason = err.Error()
			return out, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return out, err
	}
	out.Generated = articles.Languages()

	if !s.Publish {
		return out, nil
	}
	for _, lang := range out.Generated {
		target, ok := s.Target(lang)
		if !ok {
			log.Warn("publish target incomplete, skipping", zap.String("lang", string(lang)))
			out.addSkip(lang, "target not configured")
			continue
		}
		res, err := a.PublishArticle(ctx, post, lang, PublishInput{Target: target, Status: s.PublishStatus})
		if err != nil {
			out.PublishFailures++
			out.addSkip(lang, err.Error())
			sentry.CaptureException(err)
			continue
		}
		if out.Published == nil {
			out.Published = make(map[model.Language]*PublishResult, 2)
		}
		out.Published[lang] = res
		if !res.Success {
			out.PublishFailures++
		}
	}
	return out, nil
}

func (o *Outcome) addSkip(lang model.Language, reason string) {
	if o.Skipped == nil {
		o.Skipped = make(map[model.Language]string, 2)
	}
	o.Skipped[lang] = reason
}

// GenerateArticles 占用帖子、生成并保存文章；
// 保存前任何失败都会释放占用
func (a *AutoPublisher) GenerateArticles(ctx context.Context, post *model.Post, mode assistant.Mode, force bool) (*assistant.Articles, error) {
	claimed, err := a.posts.ClaimGeneration(ctx, post.ID, force, a.lease)
	if err != nil {
		return nil, fmt.Errorf("claim post %d: %w", post.ID, err)
	}
	if !claimed {
		if post.ArticleGenerated && !force {
			return nil, repository.ErrAlreadyGenerated
		}
		return nil, ErrClaimed
	}

	release := func() {
		if err := a.posts.ReleaseGeneration(context.WithoutCancel(ctx), post.ID); err != nil {
			logger.Error("release generation claim failed", zap.Uint("id", post.ID), zap.Error(err))
		}
	}

	req := assistant.Request{Text: post.Text, Mode: mode}
	if post.Media.State == model.ListParsed {
		req.MediaURLs = post.Media.Items
	}
	articles, err := a.generator.Generate(ctx, req)
	if err != nil {
		release()
		return nil, err
	}
	if err := a.posts.SetArticle(ctx, post.ID, articles.EN, articles.FR, force); err != nil {
		release()
		return nil, fmt.Errorf("store articles: %w", err)
	}

	post.ArticleGenerated = true
	post.GenerationClaimedAt = nil
	if articles.EN != nil {
		post.ArticleEN = articles.EN
	}
	if articles.FR != nil {
		post.ArticleFR = articles.FR
	}
	return articles, nil
}

// PublishArticle 发布 lang 的已存文章并记录结果
// in.Language、in.Article、in.ImageURL 由 post 填充
func (a *AutoPublisher) PublishArticle(ctx context.Context, post *model.Post, lang model.Language, in PublishInput) (*PublishResult, error) {
	article := post.ArticleFor(lang)
	if article == nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrArticleMissing, lang)
	}
	in.Language = lang
	in.Article = *article
	in.ImageURL = post.FirstMedia()

	res, err := a.publisher.Publish(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := a.posts.SetPublished(ctx, post.ID, lang, res.Success, res.Link); err != nil {
		return res, fmt.Errorf("record publish: %w", err)
	}

	if !res.Success {
		return res, nil
	}
	now := time.Now().UTC()
	switch lang {
	case model.LanguageEN:
		post.PublishedEN = true
		post.PublishedAtEN = &now
		if res.Link != "" {
			post.PublishedLinkEN = &res.Link
		}
	case model.LanguageFR:
		post.PublishedFR = true
		post.PublishedAtFR = &now
		if res.Link != "" {
			post.PublishedLinkFR = &res.Link
		}
	}
	return res, nil
}
