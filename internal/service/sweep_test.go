package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/source"
)

var sweepBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func upstreamPost(id string, minutes int) source.Post {
	return source.Post{
		ID:        id,
		Author:    "newsdesk",
		Text:      "breaking news number " + id,
		CreatedAt: sweepBase.Add(time.Duration(minutes) * time.Minute),
		LikeCount: -4,
		Media:     []string{"https://img.example/" + id + ".jpg"},
	}
}

func seedAccount(t *testing.T, db *gorm.DB, handle, userID string) *model.Account {
	acc := &model.Account{Name: handle, Handle: handle, UserID: userID}
	require.NoError(t, repository.NewAccountRepository(db).Create(context.Background(), acc))
	return acc
}

func seedPost(t *testing.T, posts repository.PostRepository, acc *model.Account, p source.Post) {
	inserted, err := posts.InsertIfAbsent(context.Background(), toModel(acc, p, sweepBase))
	require.NoError(t, err)
	require.NotNil(t, inserted)
}

func TestSweeper_StopsAtNewestStored(t *testing.T) {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	acc := seedAccount(t, db, "newsdesk", "42")
	seedPost(t, posts, acc, upstreamPost("100", 0))

	src := &stubSource{posts: map[string][]source.Post{"42": {
		upstreamPost("103", 3), upstreamPost("102", 2), upstreamPost("101", 1),
		upstreamPost("100", 0), upstreamPost("99", -1),
	}}}
	proc := &recordingProcessor{}
	sw := NewSweeper(repository.NewAccountRepository(db), posts, src, proc, 2)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: true, Settings: Settings{AutoMode: true}})
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Accounts)
	assert.Equal(t, 5, res.Fetched)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 3, res.Evaluated)
	assert.Zero(t, res.Duplicates)
	assert.Zero(t, res.Failures)
	assert.Equal(t, []string{"103", "102", "101"}, proc.seen)

	var count int64
	require.NoError(t, db.Model(&model.Post{}).Count(&count).Error)
	assert.EqualValues(t, 4, count)
	require.NoError(t, db.Model(&model.Post{}).Where("post_id = ?", "99").Count(&count).Error)
	assert.Zero(t, count)

	newest, err := posts.GetNewest(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "103", newest.PostID)
	assert.Zero(t, newest.LikeCount)
	assert.Equal(t, "https://img.example/103.jpg", newest.FirstMedia())
}

func TestSweeper_DuplicatesAreNoOps(t *testing.T) {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	acc := seedAccount(t, db, "newsdesk", "42")
	seedPost(t, posts, acc, upstreamPost("5", 0))
	seedPost(t, posts, acc, upstreamPost("7", 10))

	src := &stubSource{posts: map[string][]source.Post{"42": {
		upstreamPost("8", 20), upstreamPost("5", 0), upstreamPost("3", -5),
	}}}
	proc := &recordingProcessor{}
	sw := NewSweeper(repository.NewAccountRepository(db), posts, src, proc, 1)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: true})
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, []string{"8", "3"}, proc.seen)

	// a second sweep with the same feed stops at the newest stored post
	res = sw.Run(context.Background(), RunOptions{BotEnabled: true})
	assert.Zero(t, res.Inserted)
	assert.Len(t, proc.seen, 2)
}

func TestSweeper_SkipsInvalidEntries(t *testing.T) {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	seedAccount(t, db, "newsdesk", "42")

	broken := upstreamPost("11", 1)
	broken.Text = "  "
	src := &stubSource{posts: map[string][]source.Post{"42": {upstreamPost("12", 2), broken, {ID: "10"}}}}
	proc := &recordingProcessor{}
	sw := NewSweeper(repository.NewAccountRepository(db), posts, src, proc, 1)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: true})
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Invalid)
	assert.Equal(t, []string{"12"}, proc.seen)
}

func TestSweeper_BotDisabled(t *testing.T) {
	db := setupTestDB(t)
	seedAccount(t, db, "newsdesk", "42")
	src := &stubSource{}
	sw := NewSweeper(repository.NewAccountRepository(db), repository.NewPostRepository(db), src, &recordingProcessor{}, 1)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: false})
	assert.True(t, res.Skipped)
	assert.Zero(t, src.calls)
}

func TestSweeper_FailuresDoNotAbort(t *testing.T) {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	seedAccount(t, db, "broken", "1")
	seedAccount(t, db, "healthy", "2")

	src := &stubSource{
		posts: map[string][]source.Post{"2": {upstreamPost("21", 2), upstreamPost("20", 1)}},
		errs:  map[string]error{"1": errors.New("upstream down")},
	}
	proc := &recordingProcessor{err: errors.New("assistant run failed: boom")}
	sw := NewSweeper(repository.NewAccountRepository(db), posts, src, proc, 2)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: true})
	assert.Equal(t, 2, res.Accounts)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Evaluated)
	// one fetch failure + two processing failures
	assert.Equal(t, 3, res.Failures)
}

func TestSweeper_UntimestampedFeedKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	acc := seedAccount(t, db, "newsdesk", "42")

	bare := func(id string) source.Post {
		return source.Post{ID: id, Author: "newsdesk", Text: "update " + id}
	}
	src := &stubSource{posts: map[string][]source.Post{"42": {bare("103"), bare("102"), bare("101")}}}
	proc := &recordingProcessor{}
	sw := NewSweeper(repository.NewAccountRepository(db), posts, src, proc, 1)

	res := sw.Run(context.Background(), RunOptions{BotEnabled: true})
	require.Equal(t, 3, res.Inserted)

	newest, err := posts.GetNewest(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "103", newest.PostID)

	src.posts["42"] = []source.Post{bare("104"), bare("103"), bare("102"), bare("101")}
	res = sw.Run(context.Background(), RunOptions{BotEnabled: true})
	assert.Equal(t, 1, res.Inserted)
	assert.Zero(t, res.Duplicates)
	assert.Equal(t, []string{"103", "102", "101", "104"}, proc.seen)

	newest, err = posts.GetNewest(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "104", newest.PostID)
}

// blockingSource holds every fetch until ctx is done.
type blockingSource struct {
	started chan struct{}
	calls   atomic.Int32
}

func (s *blockingSource) Fetch(ctx context.Context, account *model.Account) ([]source.Post, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSweeper_CancelStopsWaitingForSlots(t *testing.T) {
	db := setupTestDB(t)
	for i, h := range []string{"a", "b", "c"} {
		seedAccount(t, db, h, fmt.Sprint(i+1))
	}
	src := &blockingSource{started: make(chan struct{})}
	sw := NewSweeper(repository.NewAccountRepository(db), repository.NewPostRepository(db), src, &recordingProcessor{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan SweepResult, 1)
	go func() { done <- sw.Run(ctx, RunOptions{BotEnabled: true}) }()

	<-src.started
	cancel()

	select {
	case res := <-done:
		assert.EqualValues(t, 1, src.calls.Load())
		// only the running account reports its fetch error
		assert.Equal(t, 1, res.Failures)
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not return after cancel")
	}
}
