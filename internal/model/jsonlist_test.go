package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONList_Scan(t *testing.T) {
	tests := []struct {
		name     string
		in       interface{}
		state    ListState
		items    []string
		nonEmpty bool
	}{
		{name: "null", in: nil, state: ListAbsent},
		{name: "empty string", in: "  ", state: ListAbsent},
		{name: "json null", in: "null", state: ListAbsent},
		{name: "array", in: `["a","b"]`, state: ListParsed, items: []string{"a", "b"}, nonEmpty: true},
		{name: "bytes", in: []byte(`["a"]`), state: ListParsed, items: []string{"a"}, nonEmpty: true},
		{name: "empty array", in: `[]`, state: ListParsed, items: []string{}},
		{name: "double encoded", in: `"[\"x\",\"y\"]"`, state: ListParsed, items: []string{"x", "y"}, nonEmpty: true},
		{name: "plain url", in: "https://img.example/1.jpg", state: ListRaw, nonEmpty: true},
		{name: "quoted non array", in: `"https://img.example/1.jpg"`, state: ListRaw, nonEmpty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l JSONList[string]
			require.NoError(t, l.Scan(tt.in))
			assert.Equal(t, tt.state, l.State)
			if tt.state == ListParsed {
				assert.Equal(t, tt.items, l.Items)
			}
			assert.Equal(t, tt.nonEmpty, l.NonEmpty())
		})
	}
}

func TestJSONList_ScanRejectsOtherTypes(t *testing.T) {
	var l JSONList[string]
	assert.Error(t, l.Scan(42))
}

func TestJSONList_Value(t *testing.T) {
	v, err := JSONList[string]{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewJSONList([]string{"a"}).Value()
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, v)

	v, err = RawJSONList[string]("not json").Value()
	require.NoError(t, err)
	assert.Equal(t, "not json", v)
}

func TestJSONList_StructuredItems(t *testing.T) {
	var l JSONList[Mention]
	require.NoError(t, l.Scan(`[{"username":"alice"},{"username":"bob","name":"Bob"}]`))
	require.Equal(t, ListParsed, l.State)
	assert.Equal(t, []Mention{{Username: "alice"}, {Username: "bob", Name: "Bob"}}, l.Items)
}

func TestJSONList_JSON(t *testing.T) {
	p := Post{Media: NewJSONList([]string{"u1"}), Hashtags: RawJSONList[string]("#go")}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, []interface{}{"u1"}, out["media"])
	assert.Equal(t, "#go", out["hashtags"])
	assert.Nil(t, out["links"])
}

func TestPost_Helpers(t *testing.T) {
	p := &Post{ArticleFR: &Article{Title: "T"}, PublishedEN: true}
	assert.Nil(t, p.ArticleFor(LanguageEN))
	assert.Equal(t, "T", p.ArticleFor(LanguageFR).Title)
	assert.True(t, p.PublishedFor(LanguageEN))
	assert.False(t, p.PublishedFor(LanguageFR))
	assert.Equal(t, "", p.FirstMedia())

	p.Media = RawJSONList[string]("https://img.example/raw.jpg")
	assert.Equal(t, "", p.FirstMedia())
	p.Media = NewJSONList([]string{"https://img.example/a.jpg", "https://img.example/b.jpg"})
	assert.Equal(t, "https://img.example/a.jpg", p.FirstMedia())
}

func TestWordPressKeys(t *testing.T) {
	u, n, pw := WordPressKeys(LanguageFR)
	assert.Equal(t, []string{"wordpressFrUrl", "wordpressFrUsername", "wordpressFrPassword"}, []string{u, n, pw})
	u, _, _ = WordPressKeys(LanguageEN)
	assert.Equal(t, "wordpressEnUrl", u)
}
