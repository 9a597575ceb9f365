package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/source"
	"github.com/d60-Lab/autopress/pkg/database"
)

var dbSeq atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// stubSource returns canned posts per account user ID.
type stubSource struct {
	mu    sync.Mutex
	posts map[string][]source.Post
	errs  map[string]error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context, account *model.Account) ([]source.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.errs[account.UserID]; err != nil {
		return nil, err
	}
	return s.posts[account.UserID], nil
}

// recordingProcessor counts the posts it sees.
type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (p *recordingProcessor) Process(ctx context.Context, post *model.Post, s Settings) (*Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, post.PostID)
	if p.err != nil {
		return nil, p.err
	}
	return &Outcome{Decision: Evaluate(post, s)}, nil
}

// stubGenerator returns fixed articles for the requested mode.
type stubGenerator struct {
	mu       sync.Mutex
	requests []assistant.Request
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, req assistant.Request) (*assistant.Articles, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	out := &assistant.Articles{}
	if req.Mode != assistant.ModeEnglish {
		out.FR = &model.Article{Title: "Titre", Body: "<p>corps</p>"}
	}
	if req.Mode != assistant.ModeFrench {
		out.EN = &model.Article{Title: "Title", Body: "<p>body</p>"}
	}
	return out, nil
}

// stubPublisher records inputs and answers with result.
type stubPublisher struct {
	mu     sync.Mutex
	inputs []PublishInput
	result PublishResult
	err    error
}

func (p *stubPublisher) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, in)
	if p.err != nil {
		return nil, p.err
	}
	res := p.result
	return &res, nil
}
