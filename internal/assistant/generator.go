package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// Mode 生成语言选择
type Mode string

const (
	ModeEnglish Mode = "english"
	ModeFrench  Mode = "french"
	ModeBoth    Mode = "both"
)

// ParseMode 接受模式名与语言简码
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return ModeEnglish, nil
	case "french", "fr":
		return ModeFrench, nil
	case "both", "":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("unknown language mode %q", s)
}

// Request 生成文章的素材
type Request struct {
	Text      string
	MediaURLs []string
	Mode      Mode
}

// Articles 按语言存放生成结果
type Articles struct {
	EN *model.Article
	FR *model.Article
}

// Languages 返回已生成的语言，法语在前
func (a *Articles) Languages() []model.Language {
	var out []model.Language
	if a.FR != nil {
		out = append(out, model.LanguageFR)
	}
	if a.EN != nil {
		out = append(out, model.LanguageEN)
	}
	return out
}

// JobRunner 把一条 prompt 跑到结束
type JobRunner interface {
	Run(ctx context.Context, prompt string) (*Job, error)
}

// Generator 把帖子转成文章，每种语言一次助手 run
type Generator struct {
	runner   JobRunner
	parallel bool
}

func NewGenerator(runner JobRunner, parallel bool) *Generator {
	return &Generator{runner: runner, parallel: parallel}
}

func (g *Generator) Generate(ctx context.Context, req Request) (*Articles, error) {
	ctx, span := otel.Tracer("autopress/assistant").Start(ctx, "assistant.generate")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(req.Mode)))

	switch req.Mode {
	case ModeFrench:
		fr, err := g.one(ctx, frenchPrompt(req), model.LanguageFR)
		if err != nil {
			return nil, err
		}
		return &Articles{FR: fr}, nil
	case ModeEnglish:
		en, err := g.one(ctx, englishPrompt(req, false), model.LanguageEN)
		if err != nil {
			return nil, err
		}
		return &Articles{EN: en}, nil
	case ModeBoth:
		return g.both(ctx, req)
	default:
		return nil, fmt.Errorf("unknown language mode %q", req.Mode)
	}
}

// both 两个相互独立的 prompt，按语言键合并结果
func (g *Generator) both(ctx context.Context, req Request) (*Articles, error) {
	out := &Articles{}
	if !g.parallel {
		fr, err := g.one(ctx, frenchPrompt(req), model.LanguageFR)
		if err != nil {
			return nil, err
		}
		en, err := g.one(ctx, englishPrompt(req, true), model.LanguageEN)
		if err != nil {
			return nil, err
		}
		out.FR, out.EN = fr, en
		return out, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fr, err := g.one(egCtx, frenchPrompt(req), model.LanguageFR)
		out.FR = fr
		return err
	})
	eg.Go(func() error {
		en, err := g.one(egCtx, englishPrompt(req, true), model.LanguageEN)
		out.EN = en
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Generator) one(ctx context.Context, prompt string, lang model.Language) (*model.Article, error) {
	job, err := g.runner.Run(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s article: %w", lang, err)
	}
	article, err := ParseArticle(job.Output, lang)
	if err != nil {
		logger.Warn("assistant payload rejected",
			zap.String("lang", string(lang)), zap.String("thread_id", job.ThreadID), zap.Error(err))
		return nil, fmt.Errorf("%s article: %w", lang, err)
	}
	return article, nil
}
