package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/source"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// Processor 处理一条新入库的帖子
type Processor interface {
	Process(ctx context.Context, post *model.Post, s Settings) (*Outcome, error)
}

type RunOptions struct {
	BotEnabled bool
	Settings   Settings
}

// SweepResult 一次扫描的计数
type SweepResult struct {
	RunID      string        `json:"run_id"`
	Skipped    bool          `json:"skipped"`
	Accounts   int           `json:"accounts"`
	Fetched    int           `json:"fetched"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Invalid    int           `json:"invalid"`
	Evaluated  int           `json:"evaluated"`
	Generated  int           `json:"generated"`
	Published  int           `json:"published"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Fetched += o.Fetched
	r.Inserted += o.Inserted
	r.Duplicates += o.Duplicates
	r.Invalid += o.Invalid
	r.Evaluated += o.Evaluated
	r.Generated += o.Generated
	r.Published += o.Published
	r.Failures += o.Failures
}

func (r SweepResult) String() string {
	if r.Skipped {
		return "skipped: bot disabled"
	}
	return fmt.Sprintf("accounts=%d fetched=%d inserted=%d duplicates=%d invalid=%d evaluated=%d generated=%d published=%d failures=%d",
		r.Accounts, r.Fetched, r.Inserted, r.Duplicates, r.Invalid, r.Evaluated, r.Generated, r.Published, r.Failures)
}

// Sweeper 轮询所有账号，把新帖交给 processor
// 账号之间并发，同一账号内的帖子顺序处理
type Sweeper struct {
	accounts    repository.AccountRepository
	posts       repository.PostRepository
	source      source.Source
	processor   Processor
	concurrency int
}

func NewSweeper(accounts repository.AccountRepository, posts repository.PostRepository, src source.Source, processor Processor, concurrency int) *Sweeper {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Sweeper{accounts: accounts, posts: posts, source: src, processor: processor, concurrency: concurrency}
}

// Run 整体不会失败，错误只计数并记录日志
func (s *Sweeper) Run(ctx context.Context, opts RunOptions) SweepResult {
	res := SweepResult{RunID: uuid.New().String()}
	if !opts.BotEnabled {
		res.Skipped = true
		return res
	}
	start := time.Now()

	ctx, span := otel.Tracer("autopress/service").Start(ctx, "sweep")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", res.RunID))
	log := logger.With(zap.String("run_id", res.RunID))

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		log.Error("list accounts failed", zap.Error(err))
		sentry.CaptureException(err)
		res.Failures++
		return res
	}
	res.Accounts = len(accounts)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, acc := range accounts {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			log.Warn("sweep cancelled", zap.Error(ctx.Err()))
			break
		}
		wg.Add(1)
		go func(acc *model.Account) {
			defer wg.Done()
			defer func() { <-sem }()
			r := s.sweepAccount(ctx, acc, opts.Settings, log)
			mu.Lock()
			res.add(r)
			mu.Unlock()
		}(acc)
	}
	wg.Wait()

	res.Duration = time.Since(start)
	log.Info("sweep finished", zap.String("result", res.String()), zap.Duration("took", res.Duration))
	return res
}

func (s *Sweeper) sweepAccount(ctx context.Context, acc *model.Account, settings Settings, log *zap.Logger) SweepResult {
	var res SweepResult
	log = log.With(zap.String("handle", acc.Handle))

	ctx, span := otel.Tracer("autopress/service").Start(ctx, "sweep.account")
	defer span.End()
	span.SetAttributes(attribute.String("handle", acc.Handle))

	newest, err := s.posts.GetNewest(ctx, acc.ID)
	if err != nil {
		s.fail(&res, log, "load newest post failed", err)
		return res
	}
	fetched, err := s.source.Fetch(ctx, acc)
	if err != nil {
		s.fail(&res, log, "fetch failed", err)
		return res
	}
	res.Fetched = len(fetched)

	// 无时间戳的条目按 feed 顺序递减补时间，保证 GetNewest 仍指向最新一条
	stamp := time.Now().UTC()
	for i, item := range fetched {
		if ctx.Err() != nil {
			break
		}
		// newest first: everything after the stored newest is already known
		if newest != nil && item.ID == newest.PostID {
			break
		}
		if !item.Valid() {
			res.Invalid++
			log.Debug("invalid upstream entry skipped", zap.String("post_id", item.ID))
			continue
		}

		post, err := s.posts.InsertIfAbsent(ctx, toModel(acc, item, stamp.Add(-time.Duration(i)*time.Millisecond)))
		if err != nil {
			s.fail(&res, log, "insert post failed", err)
			continue
		}
		if post == nil {
			res.Duplicates++
			continue
		}
		res.Inserted++

		if s.processor == nil {
			continue
		}
		res.Evaluated++
		out, err := s.processor.Process(ctx, post, settings)
		if err != nil {
			s.fail(&res, log.With(zap.String("post_id", post.PostID)), "auto-publish failed", err)
			continue
		}
		if out != nil {
			if len(out.Generated) > 0 {
				res.Generated++
			}
			for _, pr := range out.Published {
				if pr.Success {
					res.Published++
				}
			}
			res.Failures += out.PublishFailures
		}
	}
	return res
}

func (s *Sweeper) fail(res *SweepResult, log *zap.Logger, msg string, err error) {
	res.Failures++
	log.Error(msg, zap.Error(err))
	sentry.CaptureException(err)
}

// toModel 把上游帖子转换为存储模型；CreatedAt 缺失时使用 fallback
func toModel(acc *model.Account, p source.Post, fallback time.Time) *model.Post {
	postedAt := p.CreatedAt
	if postedAt.IsZero() {
		postedAt = fallback
	}
	return &model.Post{
		PostID:       p.ID,
		AccountID:    acc.ID,
		Author:       p.Author,
		Text:         p.Text,
		PostedAt:     postedAt,
		ReplyCount:   nonNegative(p.ReplyCount),
		RetweetCount: nonNegative(p.RetweetCount),
		LikeCount:    nonNegative(p.LikeCount),
		QuoteCount:   nonNegative(p.QuoteCount),
		ViewCount:    nonNegative(p.ViewCount),
		IsRetweet:    p.IsRetweet,
		IsReply:      p.IsReply,
		Media:        model.NewJSONList(p.Media),
		Links:        model.NewJSONList(p.Links),
		Hashtags:     model.NewJSONList(p.Hashtags),
		Mentions:     model.NewJSONList(p.Mentions),
	}
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
