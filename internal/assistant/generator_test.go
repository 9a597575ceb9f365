package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner answers by prompt language and records every prompt.
type scriptedRunner struct {
	mu      sync.Mutex
	prompts []string
	fail    error
}

func (s *scriptedRunner) Run(ctx context.Context, prompt string) (*Job, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.fail != nil {
		return &Job{Status: StatusFailed}, s.fail
	}
	if strings.Contains(prompt, "en français") {
		return &Job{Status: StatusCompleted, Output: `{"title":"Titre FR","article":"<p>fr</p>"}`}, nil
	}
	return &Job{Status: StatusCompleted, Output: `{"title":"EN Title","article":"<p>en</p>"}`}, nil
}

func TestGenerator_SingleLanguages(t *testing.T) {
	r := &scriptedRunner{}
	g := NewGenerator(r, false)

	fr, err := g.Generate(context.Background(), Request{Text: "post", Mode: ModeFrench})
	require.NoError(t, err)
	assert.Nil(t, fr.EN)
	assert.Equal(t, "Titre FR", fr.FR.Title)

	en, err := g.Generate(context.Background(), Request{Text: "post", Mode: ModeEnglish})
	require.NoError(t, err)
	assert.Nil(t, en.FR)
	assert.Equal(t, "EN Title", en.EN.Title)
	assert.NotContains(t, r.prompts[1], "Do NOT translate")
}

func TestGenerator_BothIssuesIndependentPrompts(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		r := &scriptedRunner{}
		g := NewGenerator(r, parallel)

		out, err := g.Generate(context.Background(), Request{
			Text: "Big news today", MediaURLs: []string{"https://img/1.jpg"}, Mode: ModeBoth,
		})

		require.NoError(t, err)
		require.Len(t, r.prompts, 2)
		assert.Equal(t, "Titre FR", out.FR.Title)
		assert.Equal(t, "EN Title", out.EN.Title)

		var frPrompt, enPrompt string
		for _, p := range r.prompts {
			if strings.Contains(p, "en français") {
				frPrompt = p
			} else {
				enPrompt = p
			}
		}
		require.NotEmpty(t, frPrompt)
		require.NotEmpty(t, enPrompt)
		// the English prompt is built from the source post, never from the French output
		assert.NotContains(t, enPrompt, "Titre FR")
		assert.Contains(t, enPrompt, "Do NOT translate")
		assert.Contains(t, enPrompt, "Big news today")
		assert.Contains(t, enPrompt, "https://img/1.jpg")
	}
}

func TestGenerator_PropagatesRunError(t *testing.T) {
	r := &scriptedRunner{fail: ErrRunFailed}
	g := NewGenerator(r, false)

	_, err := g.Generate(context.Background(), Request{Text: "x", Mode: ModeBoth})

	assert.True(t, errors.Is(err, ErrRunFailed))
	assert.Len(t, r.prompts, 1)
}

func TestGenerator_InvalidPayload(t *testing.T) {
	g := NewGenerator(runnerFunc(func(ctx context.Context, prompt string) (*Job, error) {
		return &Job{Status: StatusCompleted, Output: "sorry, no json"}, nil
	}), false)

	_, err := g.Generate(context.Background(), Request{Text: "x", Mode: ModeEnglish})

	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("FR")
	require.NoError(t, err)
	assert.Equal(t, ModeFrench, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)
	_, err = ParseMode("german")
	assert.Error(t, err)
}

type runnerFunc func(ctx context.Context, prompt string) (*Job, error)

func (f runnerFunc) Run(ctx context.Context, prompt string) (*Job, error) { return f(ctx, prompt) }
