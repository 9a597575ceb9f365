package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/wordpress"
)

func autoSettings() Settings {
	return Settings{
		AutoMode:      true,
		MinChars:      10,
		Mode:          assistant.ModeBoth,
		Publish:       true,
		PublishStatus: "draft",
		Targets: map[model.Language]wordpress.Target{
			model.LanguageEN: {URL: "https://en.example", Username: "bot", Password: "pw"},
			model.LanguageFR: {URL: "https://fr.example", Username: "bot", Password: "pw"},
		},
	}
}

type autoFixture struct {
	posts repository.PostRepository
	gen   *stubGenerator
	pub   *stubPublisher
	auto  *AutoPublisher
	post  *model.Post
}

func newAutoFixture(t *testing.T) *autoFixture {
	db := setupTestDB(t)
	posts := repository.NewPostRepository(db)
	acc := seedAccount(t, db, "newsdesk", "42")
	post, err := posts.InsertIfAbsent(context.Background(), toModel(acc, upstreamPost("500", 0), sweepBase))
	require.NoError(t, err)

	gen := &stubGenerator{}
	pub := &stubPublisher{result: PublishResult{Success: true, PostID: 9, Link: "https://wp.example/?p=9"}}
	return &autoFixture{posts: posts, gen: gen, pub: pub, auto: NewAutoPublisher(posts, gen, pub), post: post}
}

func TestAutoPublisher_GeneratesAndPublishes(t *testing.T) {
	f := newAutoFixture(t)
	ctx := context.Background()

	out, err := f.auto.Process(ctx, f.post, autoSettings())
	require.NoError(t, err)
	assert.True(t, out.Decision.Proceed)
	assert.Equal(t, []model.Language{model.LanguageFR, model.LanguageEN}, out.Generated)
	assert.Len(t, out.Published, 2)
	assert.Zero(t, out.PublishFailures)

	require.Len(t, f.gen.requests, 1)
	assert.Equal(t, assistant.ModeBoth, f.gen.requests[0].Mode)
	assert.Equal(t, []string{"https://img.example/500.jpg"}, f.gen.requests[0].MediaURLs)

	require.Len(t, f.pub.inputs, 2)
	assert.Equal(t, model.LanguageFR, f.pub.inputs[0].Language)
	assert.Equal(t, "Titre", f.pub.inputs[0].Article.Title)
	assert.Equal(t, "https://fr.example", f.pub.inputs[0].Target.URL)
	assert.Equal(t, "https://img.example/500.jpg", f.pub.inputs[1].ImageURL)

	stored, err := f.posts.Get(ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, stored.ArticleGenerated)
	assert.Nil(t, stored.GenerationClaimedAt)
	require.NotNil(t, stored.ArticleEN)
	assert.Equal(t, "Title", stored.ArticleEN.Title)
	assert.True(t, stored.PublishedEN)
	assert.True(t, stored.PublishedFR)
	require.NotNil(t, stored.PublishedLinkEN)
	assert.Equal(t, "https://wp.example/?p=9", *stored.PublishedLinkEN)
	assert.NotNil(t, stored.PublishedAtFR)
}

func TestAutoPublisher_GatedOut(t *testing.T) {
	f := newAutoFixture(t)
	s := autoSettings()
	s.MinChars = 500

	out, err := f.auto.Process(context.Background(), f.post, s)
	require.NoError(t, err)
	assert.False(t, out.Decision.Proceed)
	assert.Empty(t, f.gen.requests)
	assert.Empty(t, f.pub.inputs)
}

func TestAutoPublisher_NoSecondGeneration(t *testing.T) {
	f := newAutoFixture(t)
	ctx := context.Background()
	stale := *f.post

	_, err := f.auto.Process(ctx, f.post, autoSettings())
	require.NoError(t, err)

	// a second worker holding an outdated copy loses the claim
	out, err := f.auto.Process(ctx, &stale, autoSettings())
	require.NoError(t, err)
	assert.False(t, out.Decision.Proceed)
	assert.Len(t, f.gen.requests, 1)
	assert.Len(t, f.pub.inputs, 2)

	// the fresh copy is stopped by the decision engine
	out, err = f.auto.Process(ctx, f.post, autoSettings())
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyGenerated, out.Decision.Reason)
}

func TestAutoPublisher_GenerationFailureReleasesClaim(t *testing.T) {
	f := newAutoFixture(t)
	ctx := context.Background()
	f.gen.err = errors.New("fr article: assistant run failed: rate_limit_exceeded: slow down")

	_, err := f.auto.Process(ctx, f.post, autoSettings())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "slow down"))

	stored, err := f.posts.Get(ctx, f.post.ID)
	require.NoError(t, err)
	assert.False(t, stored.ArticleGenerated)
	assert.Nil(t, stored.GenerationClaimedAt)
	assert.Nil(t, stored.ArticleEN)

	f.gen.err = nil
	out, err := f.auto.Process(ctx, stored, autoSettings())
	require.NoError(t, err)
	assert.Len(t, out.Generated, 2)
}

func TestAutoPublisher_PublishDisabled(t *testing.T) {
	f := newAutoFixture(t)
	s := autoSettings()
	s.Publish = false
	s.Mode = assistant.ModeEnglish

	out, err := f.auto.Process(context.Background(), f.post, s)
	require.NoError(t, err)
	assert.Equal(t, []model.Language{model.LanguageEN}, out.Generated)
	assert.Empty(t, f.pub.inputs)

	stored, err := f.posts.Get(context.Background(), f.post.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ArticleFR)
	assert.False(t, stored.PublishedEN)
}

func TestAutoPublisher_IncompleteTargetAndFailedPublish(t *testing.T) {
	f := newAutoFixture(t)
	s := autoSettings()
	s.Targets[model.LanguageFR] = wordpress.Target{URL: "https://fr.example"}
	f.pub.result = PublishResult{Success: false, Error: "WordPress API error: 500", StatusCode: 500}

	out, err := f.auto.Process(context.Background(), f.post, s)
	require.NoError(t, err)
	assert.Equal(t, "target not configured", out.Skipped[model.LanguageFR])
	assert.Equal(t, 1, out.PublishFailures)
	require.Len(t, f.pub.inputs, 1)
	assert.Equal(t, model.LanguageEN, f.pub.inputs[0].Language)

	stored, err := f.posts.Get(context.Background(), f.post.ID)
	require.NoError(t, err)
	assert.True(t, stored.ArticleGenerated)
	assert.False(t, stored.PublishedEN)
	assert.Nil(t, stored.PublishedAtEN)
}
